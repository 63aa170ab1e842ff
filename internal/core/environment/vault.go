package environment

// Vault seals and opens secret variable values. Write-backs of
// secret-flagged variables route through the vault so plaintext never
// lands in the environments file.
type Vault interface {
	// Seal converts a plaintext value into its at-rest form.
	Seal(plaintext string) (string, error)
	// Open converts an at-rest value back into plaintext. Values that
	// were never sealed pass through unchanged.
	Open(stored string) (string, error)
}

// PassphraseVault is the default Vault: values are AES-256-GCM encrypted
// with a key derived from a user passphrase.
type PassphraseVault struct {
	passphrase string
}

// NewPassphraseVault creates a vault from a passphrase.
func NewPassphraseVault(passphrase string) *PassphraseVault {
	return &PassphraseVault{passphrase: passphrase}
}

func (v *PassphraseVault) Seal(plaintext string) (string, error) {
	return EncryptValue(plaintext, v.passphrase)
}

func (v *PassphraseVault) Open(stored string) (string, error) {
	return DecryptValue(stored, v.passphrase)
}
