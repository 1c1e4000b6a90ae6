package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 10 * time.Second

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token string `json:"token"`
	*Payload
}

type sendResponse struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Status  string          `json:"status"`
		Message string          `json:"message"`
	} `json:"error"`
}

// HTTPGateway posts messages to an HTTP push gateway. It performs exactly one attempt per Send.
type HTTPGateway struct {
	client    *resty.Client
	endpoint  string
	authToken string
}

func NewHTTPGateway(endpoint string, authToken string, timeout time.Duration) (*HTTPGateway, error) {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return NewHTTPGatewayWithClient(endpoint, authToken, client)
}

func NewHTTPGatewayWithClient(endpoint string, authToken string, client *resty.Client) (*HTTPGateway, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPGateway{
		client:    client,
		endpoint:  trimmedEndpoint,
		authToken: strings.TrimSpace(authToken),
	}, nil
}

func (g *HTTPGateway) Send(ctx context.Context, token string, payload *Payload) (string, error) {
	if g == nil || g.client == nil {
		return "", fmt.Errorf("gateway is not initialized")
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("delivery token is required")
	}
	if payload == nil {
		return "", fmt.Errorf("payload is required")
	}

	req := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sendRequest{Message: message{Token: token, Payload: payload}})
	if g.authToken != "" {
		req.SetAuthToken(g.authToken)
	}

	response, err := req.Post(g.endpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", &Error{Code: CodeUnknown, Message: "gateway request canceled", Cause: err}
		}
		return "", &Error{Code: CodeUnavailable, Message: "gateway request failed", Cause: err}
	}
	if response == nil {
		return "", &Error{Code: CodeUnavailable, Message: "gateway returned empty response"}
	}

	statusCode := response.StatusCode()
	body := response.Body()

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return messageID(response, body), nil
	}

	return "", classifyFailure(statusCode, body)
}

func classifyFailure(statusCode int, body []byte) *Error {
	gatewayErr := &Error{
		StatusCode: statusCode,
		Code:       CodeUnknown,
		Message:    fmt.Sprintf("gateway returned status %d", statusCode),
	}

	var parsed errorResponse
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		var code string
		if len(parsed.Error.Code) > 0 && json.Unmarshal(parsed.Error.Code, &code) == nil {
			gatewayErr.Code = ParseErrorCode(code)
		}
		if gatewayErr.Code == CodeUnknown && parsed.Error.Status != "" {
			gatewayErr.Code = ParseErrorCode(parsed.Error.Status)
		}
		if msg := strings.TrimSpace(parsed.Error.Message); msg != "" {
			gatewayErr.Message = msg
		}
	} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		gatewayErr.Message = fmt.Sprintf("%s: %s", gatewayErr.Message, trimmed)
	}

	// Only a recognised code or status marks a token dead; a bare 404 is a routing problem.
	if gatewayErr.Code == CodeUnknown &&
		(statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError) {
		gatewayErr.Code = CodeUnavailable
	}

	return gatewayErr
}

func messageID(response *resty.Response, body []byte) string {
	var parsed sendResponse
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		if name := strings.TrimSpace(parsed.Name); name != "" {
			return name
		}
	}

	for _, key := range []string{"X-Message-ID", "X-Request-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
