package signing

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/miekg/pkcs11"
	"golang.org/x/term"

	"github.com/oarkflow/aegis/errs"
)

// HSM signs through a PKCS#11 token, keeping the private key inside the
// module and never in process memory. The public key is read once at open
// time and cached for verification callers.
type HSM struct {
	ctx        *pkcs11.Ctx
	session    pkcs11.SessionHandle
	privHandle pkcs11.ObjectHandle
	pub        ed25519.PublicKey
}

// HSMConfig names the PKCS#11 module, slot, PIN, and key label to open.
type HSMConfig struct {
	ModulePath string
	SlotID     uint
	PIN        string
	KeyLabel   string
}

// OpenHSM loads the PKCS#11 module, logs into the configured slot, and
// locates the Ed25519 keypair by label.
func OpenHSM(cfg HSMConfig) (*HSM, error) {
	ctx := pkcs11.New(cfg.ModulePath)
	if ctx == nil {
		return nil, errs.New(errs.NoSigningKey, "failed to load pkcs11 module")
	}
	if err := ctx.Initialize(); err != nil {
		return nil, errs.Wrap(errs.NoSigningKey, "initialize pkcs11 module", err)
	}

	session, err := ctx.OpenSession(cfg.SlotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		ctx.Finalize()
		return nil, errs.Wrap(errs.NoSigningKey, "open pkcs11 session", err)
	}
	pin := cfg.PIN
	if pin == "" {
		pin, err = PromptPIN(cfg.KeyLabel)
		if err != nil {
			ctx.CloseSession(session)
			ctx.Finalize()
			return nil, err
		}
	}
	if err := ctx.Login(session, pkcs11.CKU_USER, pin); err != nil {
		ctx.CloseSession(session)
		ctx.Finalize()
		return nil, errs.Wrap(errs.NoSigningKey, "pkcs11 login", err)
	}

	h := &HSM{ctx: ctx, session: session}
	if err := h.locateKeyPair(cfg.KeyLabel); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// PromptPIN reads the token PIN from the controlling terminal without
// echoing it, for callers that don't want to carry the PIN in a config
// struct or environment variable.
func PromptPIN(label string) (string, error) {
	fmt.Printf("PIN for HSM key %q: ", label)
	bytePIN, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", errs.Wrap(errs.NoSigningKey, "read pin from terminal", err)
	}
	return string(bytePIN), nil
}

func (h *HSM) locateKeyPair(label string) error {
	privTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	if err := h.ctx.FindObjectsInit(h.session, privTemplate); err != nil {
		return errs.Wrap(errs.NoSigningKey, "find private key init", err)
	}
	privHandles, _, err := h.ctx.FindObjects(h.session, 1)
	h.ctx.FindObjectsFinal(h.session)
	if err != nil {
		return errs.Wrap(errs.NoSigningKey, "find private key", err)
	}
	if len(privHandles) == 0 {
		return errs.New(errs.NoSigningKey, "no private key found with label "+label)
	}
	h.privHandle = privHandles[0]

	pubTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	if err := h.ctx.FindObjectsInit(h.session, pubTemplate); err != nil {
		return errs.Wrap(errs.NoSigningKey, "find public key init", err)
	}
	pubHandles, _, err := h.ctx.FindObjects(h.session, 1)
	h.ctx.FindObjectsFinal(h.session)
	if err != nil {
		return errs.Wrap(errs.NoSigningKey, "find public key", err)
	}
	if len(pubHandles) == 0 {
		return errs.New(errs.NoSigningKey, "no public key found with label "+label)
	}

	attrs, err := h.ctx.GetAttributeValue(h.session, pubHandles[0], []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, nil),
	})
	if err != nil {
		return errs.Wrap(errs.NoSigningKey, "read public key value", err)
	}
	if len(attrs) == 0 || len(attrs[0].Value) != ed25519.PublicKeySize {
		return errs.New(errs.NoSigningKey, "public key attribute is not a 32-byte Ed25519 point")
	}
	h.pub = ed25519.PublicKey(attrs[0].Value)
	return nil
}

// Sign asks the token to produce an Ed25519 signature over digest. The
// private key itself never leaves the module.
func (h *HSM) Sign(digest []byte) ([]byte, error) {
	mechanism := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_EDDSA, nil)}
	if err := h.ctx.SignInit(h.session, mechanism, h.privHandle); err != nil {
		return nil, errs.Wrap(errs.SignatureInvalid, "pkcs11 sign init", err)
	}
	sig, err := h.ctx.Sign(h.session, digest)
	if err != nil {
		return nil, errs.Wrap(errs.SignatureInvalid, "pkcs11 sign", err)
	}
	return sig, nil
}

func (h *HSM) PublicKey() ed25519.PublicKey {
	return h.pub
}

// Close logs out, closes the session, and finalizes the PKCS#11 module.
func (h *HSM) Close() error {
	h.ctx.Logout(h.session)
	h.ctx.CloseSession(h.session)
	h.ctx.Finalize()
	h.ctx.Destroy()
	return nil
}
