package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWrongScene         = errors.New("token is for another scene")
)

const (
	bcryptCost = 12
	tokenTTL   = 24 * time.Hour
)

// Service issues and checks scene-scoped edit tokens. When a passphrase hash
// is configured, a token is only issued for the matching passphrase;
// otherwise anyone may edit.
type Service struct {
	jwtSecret      []byte
	passphraseHash []byte
	now            func() time.Time
}

func NewService(jwtSecret, passphraseHash string) *Service {
	return &Service{
		jwtSecret:      []byte(jwtSecret),
		passphraseHash: []byte(passphraseHash),
		now:            time.Now,
	}
}

// HashPassphrase produces the bcrypt hash expected in EDIT_PASSPHRASE_HASH.
func HashPassphrase(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash passphrase: %w", err)
	}
	return string(hash), nil
}

// Open reports whether editing needs no passphrase.
func (s *Service) Open() bool { return len(s.passphraseHash) == 0 }

type EditToken struct {
	Token       string    `json:"token"`
	EditorID    string    `json:"editorId"`
	DisplayName string    `json:"displayName"`
	SceneID     string    `json:"sceneId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Claims is what a valid edit token grants.
type Claims struct {
	EditorID    string
	DisplayName string
	SceneID     string
}

// IssueEditToken checks the passphrase and signs a token allowing edits to
// sceneID. An empty displayName becomes "Editor".
func (s *Service) IssueEditToken(sceneID, passphrase, displayName string) (*EditToken, error) {
	if !s.Open() {
		if err := bcrypt.CompareHashAndPassword(s.passphraseHash, []byte(passphrase)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}
	if displayName == "" {
		displayName = "Editor"
	}

	editorID := "editor-" + uuid.New().String()[:8]
	now := s.now()
	expires := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub":   editorID,
		"name":  displayName,
		"scene": sceneID,
		"iat":   now.Unix(),
		"exp":   expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &EditToken{
		Token:       signed,
		EditorID:    editorID,
		DisplayName: displayName,
		SceneID:     sceneID,
		ExpiresAt:   expires,
	}, nil
}

// ValidateToken parses a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	editorID, _ := claims["sub"].(string)
	sceneID, _ := claims["scene"].(string)
	if editorID == "" || sceneID == "" {
		return nil, fmt.Errorf("%w: missing subject or scene", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)

	return &Claims{EditorID: editorID, DisplayName: name, SceneID: sceneID}, nil
}

// Authorize validates a token for sceneID.
func (s *Service) Authorize(tokenString, sceneID string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SceneID != sceneID {
		return nil, ErrWrongScene
	}
	return claims, nil
}
