package gmailstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/nhle/mail-triage/internal/mailstore"
	"github.com/nhle/mail-triage/internal/model"
)

// loadOAuthConfig reads the OAuth client credentials file downloaded
// from the Google Cloud console. The modify scope covers listing,
// reading, sending and label changes.
func loadOAuthConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &mailstore.AuthError{
			Gateway: "gmail",
			Message: fmt.Sprintf("reading OAuth credentials %s: %v", path, err),
		}
	}

	cfg, err := google.ConfigFromJSON(data, gmail.GmailModifyScope)
	if err != nil {
		return nil, &mailstore.AuthError{
			Gateway: "gmail",
			Message: fmt.Sprintf("parsing OAuth credentials %s: %v", path, err),
		}
	}
	return cfg, nil
}

// tokenFromFile loads a cached OAuth token.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decoding token file %s: %w", path, err)
	}
	return token, nil
}

// saveToken caches the OAuth token so later runs skip the consent flow.
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("writing token file %s: %w", path, err)
	}
	return nil
}

// Authorize runs the interactive OAuth consent flow: it prints the
// consent URL on out, reads the resulting authorization code from in,
// exchanges it, and caches the token at cfg.TokenFile.
func Authorize(ctx context.Context, cfg model.GmailConfig, in io.Reader, out io.Writer) error {
	oauthCfg, err := loadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return err
	}

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open the following link in your browser, authorize the app,\n"+
		"then paste the authorization code here.\n\n%s\n\nCode: ", authURL)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	if err := saveToken(cfg.TokenFile, token); err != nil {
		return err
	}

	fmt.Fprintf(out, "Token saved to %s\n", cfg.TokenFile)
	return nil
}
