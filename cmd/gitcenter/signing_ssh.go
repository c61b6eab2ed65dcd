package main

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/gitcenter/pkg/repo"
)

// SSHSIG framing as used by ssh-keygen -Y sign and git's ssh signing.
const (
	sshsigMagic     = "SSHSIG"
	sshsigVersion   = 1
	sshsigNamespace = "git"
	sshsigHash      = "sha512"
	sshsigArmorHead = "-----BEGIN SSH SIGNATURE-----"
	sshsigArmorTail = "-----END SSH SIGNATURE-----"
)

type sshsigSignedData struct {
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Hash          []byte
}

type sshsigBlob struct {
	Version       uint32
	PublicKey     []byte
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Signature     []byte
}

func newSSHCommitSigner(keyPath string) (repo.Signer, string, error) {
	resolvedPath, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", resolvedPath, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", resolvedPath, err)
	}
	return func(payload []byte) (string, error) {
		return sshSign(signer, payload)
	}, resolvedPath, nil
}

// sshsigMessage is the byte string the key actually signs for payload.
func sshsigMessage(payload []byte) []byte {
	digest := sha512.Sum512(payload)
	data := ssh.Marshal(sshsigSignedData{
		Namespace:     sshsigNamespace,
		HashAlgorithm: sshsigHash,
		Hash:          digest[:],
	})
	return append([]byte(sshsigMagic), data...)
}

// sshSign produces an armored SSHSIG signature over payload.
func sshSign(signer ssh.Signer, payload []byte) (string, error) {
	msg := sshsigMessage(payload)

	var (
		sig *ssh.Signature
		err error
	)
	if as, ok := signer.(ssh.AlgorithmSigner); ok && signer.PublicKey().Type() == ssh.KeyAlgoRSA {
		sig, err = as.SignWithAlgorithm(rand.Reader, msg, ssh.KeyAlgoRSASHA512)
	} else {
		sig, err = signer.Sign(rand.Reader, msg)
	}
	if err != nil {
		return "", fmt.Errorf("ssh sign: %w", err)
	}

	blob := append([]byte(sshsigMagic), ssh.Marshal(sshsigBlob{
		Version:       sshsigVersion,
		PublicKey:     signer.PublicKey().Marshal(),
		Namespace:     sshsigNamespace,
		HashAlgorithm: sshsigHash,
		Signature:     ssh.Marshal(*sig),
	})...)
	return armorSSHSIG(blob), nil
}

func armorSSHSIG(blob []byte) string {
	enc := base64.StdEncoding.EncodeToString(blob)
	var b strings.Builder
	b.WriteString(sshsigArmorHead)
	b.WriteByte('\n')
	for len(enc) > 70 {
		b.WriteString(enc[:70])
		b.WriteByte('\n')
		enc = enc[70:]
	}
	b.WriteString(enc)
	b.WriteByte('\n')
	b.WriteString(sshsigArmorTail)
	b.WriteByte('\n')
	return b.String()
}

// parseSSHSIG decodes an armored signature into its framing fields.
func parseSSHSIG(armored string) (*sshsigBlob, *ssh.Signature, error) {
	body := strings.TrimSpace(armored)
	body, ok := strings.CutPrefix(body, sshsigArmorHead)
	if !ok {
		return nil, nil, fmt.Errorf("missing %s", sshsigArmorHead)
	}
	body, ok = strings.CutSuffix(body, sshsigArmorTail)
	if !ok {
		return nil, nil, fmt.Errorf("missing %s", sshsigArmorTail)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(body), ""))
	if err != nil {
		return nil, nil, fmt.Errorf("decode signature: %w", err)
	}
	rest, ok := strings.CutPrefix(string(raw), sshsigMagic)
	if !ok {
		return nil, nil, fmt.Errorf("bad signature magic")
	}
	var blob sshsigBlob
	if err := ssh.Unmarshal([]byte(rest), &blob); err != nil {
		return nil, nil, fmt.Errorf("decode signature: %w", err)
	}
	var sig ssh.Signature
	if err := ssh.Unmarshal(blob.Signature, &sig); err != nil {
		return nil, nil, fmt.Errorf("decode signature: %w", err)
	}
	return &blob, &sig, nil
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return expandUserPath(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
