package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// webhookClaims is embedded in the bearer token sent alongside a dispatched
// job so the receiving webhook handler can verify the request actually
// came from this orchestrator before acting on it.
type webhookClaims struct {
	JobID string `json:"job_id"`
	jwt.RegisteredClaims
}

// dispatchPayload is the job description POSTed to the remote URL.
type dispatchPayload struct {
	JobID        string          `json:"job_id"`
	FunctionName string          `json:"function_name"`
	Args         json.RawMessage `json:"args"`
}

// Webhook is a push-only core.Executor: Submit POSTs a signed job
// description to a remote URL and returns immediately. It never satisfies
// Poller — completions only ever arrive via internal/webhook's HTTP
// handler verifying the same signing key.
type Webhook struct {
	url        string
	signingKey []byte
	client     *http.Client
}

// NewWebhook builds a push executor that dispatches to url, signing each
// job's bearer token with signingKey.
func NewWebhook(url string, signingKey []byte) *Webhook {
	return &Webhook{
		url:        url,
		signingKey: signingKey,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Submit(ctx context.Context, functionName string, args []byte) (string, error) {
	jobID := uuid.New().String()

	token, err := w.sign(jobID)
	if err != nil {
		return "", fmt.Errorf("sign job token: %w", err)
	}

	body, err := json.Marshal(dispatchPayload{JobID: jobID, FunctionName: functionName, Args: args})
	if err != nil {
		return "", fmt.Errorf("marshal dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dispatch to %s: %w", w.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("dispatch to %s: status %d", w.url, resp.StatusCode)
	}
	return jobID, nil
}

func (w *Webhook) sign(jobID string) (string, error) {
	return SignCompletionToken(jobID, w.signingKey)
}

// SignCompletionToken mints the same bearer token Webhook.Submit signs for
// jobID, so a caller that completes a push-dispatched job out-of-band (or a
// test exercising internal/webhook's handler) can present a token
// VerifyCompletionToken will accept.
func SignCompletionToken(jobID string, signingKey []byte) (string, error) {
	now := time.Now()
	claims := webhookClaims{
		JobID: jobID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// VerifyCompletionToken checks a bearer token presented to the webhook
// completion endpoint against the same signing key and returns the job id
// it was minted for.
func VerifyCompletionToken(tokenString string, signingKey []byte) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &webhookClaims{}, func(t *jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*webhookClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.JobID, nil
}
