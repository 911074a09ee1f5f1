package runpod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/podfleet/config"
	"github.com/projecteru2/podfleet/provider"
	"github.com/projecteru2/podfleet/types"
	"github.com/projecteru2/podfleet/utils"
)

const typ = "runpod"

// compile-time interface check.
var _ provider.Provider = (*RunPod)(nil)

// RunPod implements provider.Provider over the RunPod GraphQL API.
type RunPod struct {
	apiKey   string
	endpoint string
	hc       *http.Client
}

// New creates a RunPod client. A missing API key is fatal.
func New(conf *config.Config) (*RunPod, error) {
	if conf == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := conf.RequireAPIKey(); err != nil {
		return nil, err
	}
	endpoint := conf.APIURL
	if endpoint == "" {
		endpoint = config.DefaultAPIURL
	}
	return &RunPod{apiKey: conf.APIKey, endpoint: endpoint, hc: utils.NewHTTPClient()}, nil
}

func (r *RunPod) Type() string { return typ }

// ListPods returns every pod on the account. Retried on transient failures.
func (r *RunPod) ListPods(ctx context.Context) ([]types.Pod, error) {
	data, err := utils.DoWithRetry(ctx, func() (listPodsData, error) {
		return call[listPodsData](ctx, r, gqlRequest{Query: listPodsQuery})
	})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	if data.Myself == nil {
		return nil, nil
	}
	pods := make([]types.Pod, 0, len(data.Myself.Pods))
	for _, raw := range data.Myself.Pods {
		pods = append(pods, toPod(raw))
	}
	return pods, nil
}

// CreatePod deploys one on-demand pod. Not retried: the API has no
// create-if-absent semantics and a retry after a lost response could
// allocate a second pod with the same name.
func (r *RunPod) CreatePod(ctx context.Context, req provider.CreateRequest) (*types.Pod, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("create pod: empty name")
	}
	data, err := call[deployPodData](ctx, r, gqlRequest{
		Query:     deployPodMutation,
		Variables: map[string]any{"input": deployInput(req.Name, req.Template, req.Env)},
	})
	if err != nil {
		return nil, fmt.Errorf("create pod %s: %w", req.Name, err)
	}
	if data.Pod == nil {
		return nil, fmt.Errorf("create pod %s: empty response", req.Name)
	}
	pod := toPod(*data.Pod)
	return &pod, nil
}

// StopPod stops a running pod. Idempotent, so retried.
func (r *RunPod) StopPod(ctx context.Context, id string) error {
	_, err := utils.DoWithRetry(ctx, func() (json.RawMessage, error) {
		return call[json.RawMessage](ctx, r, gqlRequest{
			Query:     stopPodMutation,
			Variables: map[string]any{"input": map[string]any{"podId": id}},
		})
	})
	if err != nil {
		return fmt.Errorf("stop pod %s: %w", id, err)
	}
	return nil
}

// TerminatePod permanently deletes a pod. Idempotent, so retried.
func (r *RunPod) TerminatePod(ctx context.Context, id string) error {
	_, err := utils.DoWithRetry(ctx, func() (json.RawMessage, error) {
		return call[json.RawMessage](ctx, r, gqlRequest{
			Query:     terminatePodMutation,
			Variables: map[string]any{"input": map[string]any{"podId": id}},
		})
	})
	if err != nil {
		return fmt.Errorf("terminate pod %s: %w", id, err)
	}
	return nil
}

// call posts one GraphQL request and decodes data into T. HTTP 401/403,
// Cloudflare's 1010 block and GraphQL auth errors map to ErrUnauthorized.
func call[T any](ctx context.Context, r *RunPod, req gqlRequest) (T, error) {
	var zero T
	body, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("marshal request: %w", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.apiKey)
	header.Set("Accept", "application/json")

	rb, err := utils.DoAPI(ctx, r.hc, http.MethodPost, r.requestURL(), header, body, http.StatusOK)
	if err != nil {
		var ae *utils.APIError
		if errors.As(err, &ae) && isAuthFailure(ae.Code, ae.Message) {
			return zero, fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
		}
		return zero, err
	}

	var resp gqlResponse[T]
	if err := json.Unmarshal(rb, &resp); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return zero, graphQLError(resp.Errors)
	}
	return resp.Data, nil
}

// requestURL carries the key as a query parameter as well: older accounts
// only accept that form.
func (r *RunPod) requestURL() string {
	return r.endpoint + "?api_key=" + url.QueryEscape(r.apiKey)
}

func isAuthFailure(code int, message string) bool {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return true
	}
	if strings.Contains(message, "error code: 1010") {
		log.WithFunc("runpod.call").Warnf(context.Background(), "request blocked by Cloudflare (1010): check the API key and its encoding")
		return true
	}
	return false
}

// apiError is a GraphQL-level error. These are not transient.
type apiError struct{ messages []string }

func (e *apiError) Error() string      { return "graphql: " + strings.Join(e.messages, "; ") }
func (e *apiError) NonRetryable() bool { return true }

func graphQLError(errs []gqlError) error {
	msgs := make([]string, 0, len(errs))
	auth := false
	for _, e := range errs {
		msgs = append(msgs, e.Message)
		lower := strings.ToLower(e.Message)
		if strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key") {
			auth = true
		}
	}
	err := &apiError{messages: msgs}
	if auth {
		return fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
	}
	if slices.ContainsFunc(msgs, func(m string) bool { return strings.Contains(strings.ToLower(m), "not found") }) {
		return fmt.Errorf("%w: %w", provider.ErrNotFound, err)
	}
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
