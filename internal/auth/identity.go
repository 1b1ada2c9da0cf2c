package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
)

var (
	usernameAdjectives = []string{"Batman", "xarvis", "pookie", "xem", "CM", "thief"}
	usernameNouns      = []string{"Aca", "king", "Loard", "guest", "member"}
)

const avatarBaseURL = "https://api.dicebear.com/7.x/micah/png"

// GenerateUsername returns a display name of the form adjective_noun_NNNN.
func GenerateUsername() (string, error) {
	adj, err := pick(usernameAdjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(usernameNouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generating username suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s_%d", adj, noun, 1000+n.Int64()), nil
}

// AvatarURL derives a generated avatar from seed.
func AvatarURL(seed string) string {
	return avatarBaseURL + "?seed=" + url.QueryEscape(seed)
}

// RandomAvatarURL returns an avatar for a fresh random seed.
func RandomAvatarURL() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating avatar seed: %w", err)
	}
	return AvatarURL(hex.EncodeToString(b)), nil
}

func pick(options []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(options))))
	if err != nil {
		return "", fmt.Errorf("picking random element: %w", err)
	}
	return options[n.Int64()], nil
}
