package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseSettings identifies the Firebase project whose ID tokens are accepted.
type FirebaseSettings struct {
	ProjectID       string
	CredentialsFile string
}

// idTokenVerifier is the slice of the Firebase Admin client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier verifies Firebase ID tokens through the Admin SDK.
type FirebaseVerifier struct {
	client  idTokenVerifier
	timeout time.Duration
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout overrides the timeout used for Admin SDK calls.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewFirebaseVerifier constructs a FirebaseVerifier backed by the Admin SDK.
func NewFirebaseVerifier(ctx context.Context, settings FirebaseSettings, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if settings.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if settings.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(settings.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: settings.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	return newFirebaseVerifier(authClient, opts...), nil
}

func newFirebaseVerifier(client idTokenVerifier, opts ...FirebaseOption) *FirebaseVerifier {
	verifier := &FirebaseVerifier{client: client, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier
}

// VerifyToken forwards verification to the Firebase client using a bounded context.
func (v *FirebaseVerifier) VerifyToken(ctx context.Context, raw string) (*Claims, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	token, err := v.client.VerifyIDToken(ctx, raw)
	switch {
	case err == nil:
	case firebaseauth.IsIDTokenExpired(err):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	values := make(map[string]any, len(token.Claims)+1)
	for k, val := range token.Claims {
		values[k] = val
	}
	if _, ok := values["email"]; !ok && token.Firebase.Identities != nil {
		if emails, ok := token.Firebase.Identities["email"].([]interface{}); ok && len(emails) > 0 {
			values["email"] = emails[0]
		}
	}
	return &Claims{Subject: token.UID, Values: values}, nil
}

var _ TokenVerifier = (*FirebaseVerifier)(nil)
