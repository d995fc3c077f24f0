package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/vision-helper/internal/app/bootstrap"
	appconfig "github.com/wolfman30/vision-helper/internal/config"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// The assistant is built once per container so the request queue and the
// conversation context survive across warm invocations.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	rt, err := bootstrap.BuildAssistant(context.Background(), cfg, nil, logger)
	if err != nil {
		panic(err)
	}
	h := bootstrap.BuildRouter(rt, cfg, nil, logger)

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, h, evt)
	})
}

// handle replays an API Gateway v2 event against the HTTP router.
func handle(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if path == "" {
		path = "/"
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body)).WithContext(ctx)
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range evt.Cookies {
		req.Header.Add("Cookie", c)
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.RemoteAddr = ip + ":0"
		if req.Header.Get("X-Real-Ip") == "" {
			req.Header.Set("X-Real-Ip", ip)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: rec.Code,
		Headers:    map[string]string{},
	}
	for k, values := range rec.Header() {
		out.Headers[strings.ToLower(k)] = strings.Join(values, ",")
	}
	payload := rec.Body.Bytes()
	if utf8.Valid(payload) {
		out.Body = string(payload)
	} else {
		out.Body = base64.StdEncoding.EncodeToString(payload)
		out.IsBase64Encoded = true
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
