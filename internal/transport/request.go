package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

// DecodeResponse decodes a JSON response into target. Non-2xx statuses are
// returned as an APIError carrying a truncated body. A nil target discards
// the body; an empty body leaves target untouched.
func DecodeResponse(resp *http.Response, system string, target any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapAPI(system, endpointOf(resp), errors.WrapIO("read", "response body", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > constants.MaxErrorBodyLength {
			msg = msg[:constants.MaxErrorBodyLength]
		}
		if msg == "" {
			msg = resp.Status
		}
		return &errors.APIError{
			System:     system,
			StatusCode: resp.StatusCode,
			Endpoint:   endpointOf(resp),
			Message:    msg,
		}
	}

	if target == nil || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", endpointOf(resp), err)
	}
	return nil
}

func endpointOf(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.Path
}
