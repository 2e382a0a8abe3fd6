package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration and skips when no server is configured.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.Addr == "" {
		s.T().Skip("HIDDEN_TALK_ADDR is not set, skipping end-to-end suite")
	}
	s.Config.Addr = strings.TrimRight(s.Config.Addr, "/")
	s.client = &http.Client{
		Timeout:   10 * time.Second,
		Transport: &loggingTransport{suite: s, next: http.DefaultTransport},
	}
}

// Step prints a colorized header before running one contextual step.
func (s *BaseHTTPSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Call sends a JSON request with an optional bearer token and decodes the JSON answer into out.
func (s *BaseHTTPSuite) Call(method, path, token string, body, out any) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	request, err := http.NewRequest(method, s.Config.Addr+path, reader)
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := s.client.Do(request)
	s.Require().NoError(err, "request to %s failed", path)
	defer func() { _ = response.Body.Close() }()

	raw, err := io.ReadAll(response.Body)
	s.Require().NoError(err)
	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out), "unexpected body %s", string(raw))
	}
	return response.StatusCode
}

// WithHealth provides a gRPC health client, skipping when no health address is configured.
func (s *BaseHTTPSuite) WithHealth(name string, fn func(ctx context.Context, client grpc_health_v1.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("HIDDEN_TALK_HEALTH_ADDR is not set")
	}
	s.Step(s.T(), name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to health server at "+s.Config.HealthAddr)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fn(ctx, grpc_health_v1.NewHealthClient(conn))
}

// WebsocketURL turns the configured base URL into the realtime endpoint of a room.
func (s *BaseHTTPSuite) WebsocketURL(roomID string) string {
	base := strings.Replace(s.Config.Addr, "http", "ws", 1)
	return base + "/api/realtime?roomId=" + roomID
}

type loggingTransport struct {
	suite *BaseHTTPSuite
	next  http.RoundTripper
}

func (l *loggingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	start := time.Now()
	var requestBody []byte
	if l.suite.Config.DebugJSON && request.Body != nil {
		requestBody, _ = io.ReadAll(request.Body)
		request.Body = io.NopCloser(bytes.NewReader(requestBody))
	}

	response, err := l.next.RoundTrip(request)

	logBuilder := strings.Builder{}
	if err != nil {
		fmt.Fprintf(&logBuilder, "HTTP %s %s [error] in %v: %v", request.Method, request.URL.Path, time.Since(start), err)
		l.suite.T().Log(logBuilder.String())
		return nil, err
	}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", request.Method, request.URL.Path, response.StatusCode, time.Since(start))
	if l.suite.Config.DebugJSON {
		responseBody, _ := io.ReadAll(response.Body)
		_ = response.Body.Close()
		response.Body = io.NopCloser(bytes.NewReader(responseBody))
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(requestBody))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(responseBody))
	}
	l.suite.T().Log(logBuilder.String())
	return response, nil
}
