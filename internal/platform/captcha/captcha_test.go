// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleVerifier_Verify(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		statusCode int
		token      string
		wantErr    bool
	}{
		{
			name:       "Success_HighScore",
			body:       `{"success": true, "score": 0.9}`,
			statusCode: http.StatusOK,
			token:      "good-token",
			wantErr:    false,
		},
		{
			name:       "Success_ExactThreshold",
			body:       `{"success": true, "score": 0.5}`,
			statusCode: http.StatusOK,
			token:      "edge-token",
			wantErr:    false,
		},
		{
			name:       "Failure_LowScore",
			body:       `{"success": true, "score": 0.3}`,
			statusCode: http.StatusOK,
			token:      "bot-token",
			wantErr:    true,
		},
		{
			name:       "Failure_NotSuccess",
			body:       `{"success": false, "error-codes": ["invalid-input-response"]}`,
			statusCode: http.StatusOK,
			token:      "bad-token",
			wantErr:    true,
		},
		{
			name:       "Failure_ServerError",
			body:       `oops`,
			statusCode: http.StatusInternalServerError,
			token:      "any-token",
			wantErr:    true,
		},
		{
			name:       "Failure_MalformedBody",
			body:       `{not json`,
			statusCode: http.StatusOK,
			token:      "any-token",
			wantErr:    true,
		},
		{
			name:       "Failure_EmptyToken",
			body:       `{"success": true, "score": 0.9}`,
			statusCode: http.StatusOK,
			token:      "",
			wantErr:    true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				require.NoError(t, request.ParseForm())
				assert.Equal(t, "secret-key", request.PostFormValue("secret"))

				writer.WriteHeader(testCase.statusCode)
				_, _ = writer.Write([]byte(testCase.body))
			}))
			defer server.Close()

			verifier := NewGoogleVerifier(server.URL, "secret-key", 0.5)
			err := verifier.Verify(context.Background(), testCase.token)

			if testCase.wantErr {
				assert.ErrorIs(t, err, ErrChallengeFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGoogleVerifier_Verify_UnreachableEndpoint(t *testing.T) {
	verifier := NewGoogleVerifier("http://127.0.0.1:1", "secret-key", 0.5)

	err := verifier.Verify(context.Background(), "some-token")
	assert.ErrorIs(t, err, ErrChallengeFailed)
}
