// Package seed creates development accounts and prints their access tokens.
// Registration proper belongs to the credential service; this only fills a store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatsync/internal/apperr"
	"chatsync/internal/user"

	"golang.org/x/crypto/bcrypt"
)

type Account struct {
	Email       string
	DisplayName string
}

type Result struct {
	User  user.User
	Token string
	// Existing is set when the email was already registered.
	Existing bool
}

type TokenIssuer interface {
	Issue(userID, displayName string, now time.Time) (string, error)
}

// Parse reads "email[:name],email[:name]". A missing name falls back to the email's local part.
func Parse(list string) ([]Account, error) {
	var out []Account
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		email, name, _ := strings.Cut(item, ":")
		email = user.NormalizeEmail(email)
		if !strings.Contains(email, "@") {
			return nil, fmt.Errorf("seed: invalid email %q", email)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		out = append(out, Account{Email: email, DisplayName: name})
	}
	return out, nil
}

// Run creates each account that does not exist yet and issues a token for every one.
func Run(ctx context.Context, repo user.Repository, tokens TokenIssuer, accounts []Account, password string) ([]Result, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed: hash password: %w", err)
	}

	out := make([]Result, 0, len(accounts))
	for _, a := range accounts {
		res := Result{}
		existing, err := repo.GetUserByEmail(ctx, a.Email)
		switch {
		case err == nil:
			res.User, res.Existing = existing, true
		case errors.Is(err, apperr.ErrNotFound):
			res.User, err = repo.CreateUser(ctx, user.User{
				Email:        a.Email,
				DisplayName:  a.DisplayName,
				PasswordHash: string(hash),
			})
			if err != nil {
				return nil, fmt.Errorf("seed: create %s: %w", a.Email, err)
			}
		default:
			return nil, fmt.Errorf("seed: lookup %s: %w", a.Email, err)
		}

		res.Token, err = tokens.Issue(res.User.ID, res.User.DisplayName, time.Now())
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
