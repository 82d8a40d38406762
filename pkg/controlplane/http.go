package controlplane

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/smithy-go"

	"github.com/rangeworks/drover/pkg/types"
)

const (
	apiVersion  = "2024-03-20"
	serviceName = "scheduler"
)

// HTTPAPIConfig configures the remote control-plane transport.
type HTTPAPIConfig struct {
	Endpoint    string
	Region      string
	Credentials aws.CredentialsProvider

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// httpAPI implements API over SigV4-signed JSON requests.
type httpAPI struct {
	endpoint string
	region   string
	creds    aws.CredentialsProvider
	signer   *v4.Signer
	http     *http.Client
}

// NewHTTPAPI creates the remote transport. Every method performs exactly
// one request; service errors come back as structured smithy API errors
// so Client can classify them.
func NewHTTPAPI(cfg HTTPAPIConfig) API {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpAPI{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		region:   cfg.Region,
		creds:    cfg.Credentials,
		signer:   v4.NewSigner(),
		http:     httpClient,
	}
}

// serviceError is the wire shape of a structured service error.
type serviceError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func (a *httpAPI) do(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s%s", a.endpoint, apiVersion, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	creds, err := a.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve signing credentials: %w", err)
	}

	hash := sha256.Sum256(body)
	if err := a.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(hash[:]), serviceName, a.region, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var svcErr serviceError
		if json.Unmarshal(data, &svcErr) == nil && svcErr.Type != "" {
			// "namespace#ExceptionName" and bare names both occur.
			code := svcErr.Type
			if idx := strings.LastIndexByte(code, '#'); idx >= 0 {
				code = code[idx+1:]
			}
			return &smithy.GenericAPIError{Code: code, Message: svcErr.Message}
		}
		return fmt.Errorf("control plane returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (a *httpAPI) CreateWorker(ctx context.Context, in *CreateWorkerInput) (*CreateWorkerOutput, error) {
	out := &CreateWorkerOutput{}
	path := fmt.Sprintf("/fleets/%s/workers", in.FleetID)
	if err := a.do(ctx, path, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *httpAPI) AssumeFleetRoleForWorker(ctx context.Context, in *AssumeFleetRoleInput) (*AssumeFleetRoleOutput, error) {
	var wire struct {
		Credentials struct {
			AccessKeyID     string    `json:"accessKeyId"`
			SecretAccessKey string    `json:"secretAccessKey"`
			SessionToken    string    `json:"sessionToken"`
			Expiration      time.Time `json:"expiration"`
		} `json:"credentials"`
	}
	path := fmt.Sprintf("/fleets/%s/workers/%s/fleet-role", in.FleetID, in.WorkerID)
	if err := a.do(ctx, path, in, &wire); err != nil {
		return nil, err
	}
	return &AssumeFleetRoleOutput{Credentials: RoleCredentials{
		AccessKeyID:     wire.Credentials.AccessKeyID,
		SecretAccessKey: wire.Credentials.SecretAccessKey,
		SessionToken:    wire.Credentials.SessionToken,
		Expiration:      wire.Credentials.Expiration,
	}}, nil
}

func (a *httpAPI) BatchGetJobEntity(ctx context.Context, in *BatchGetJobEntityInput) (*BatchGetJobEntityOutput, error) {
	out := &BatchGetJobEntityOutput{}
	path := fmt.Sprintf("/fleets/%s/workers/%s/batchGetJobEntity", in.FleetID, in.WorkerID)
	if err := a.do(ctx, path, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *httpAPI) UpdateWorker(ctx context.Context, in *UpdateWorkerInput) (*UpdateWorkerOutput, error) {
	out := &UpdateWorkerOutput{}
	path := fmt.Sprintf("/fleets/%s/workers/%s", in.FleetID, in.WorkerID)
	if err := a.do(ctx, path, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *httpAPI) UpdateWorkerSchedule(ctx context.Context, in *UpdateWorkerScheduleInput) (*UpdateWorkerScheduleOutput, error) {
	var wire struct {
		AssignedSessions []types.AssignedSession `json:"assignedSessions"`
		CancelDirectives []struct {
			SessionID        string `json:"sessionId"`
			ActionID         string `json:"actionId"`
			GraceTimeSeconds int    `json:"graceTimeSeconds"`
		} `json:"cancelDirectives"`
		UpdateIntervalSeconds int `json:"updateIntervalSeconds"`
	}
	path := fmt.Sprintf("/fleets/%s/workers/%s/schedule", in.FleetID, in.WorkerID)
	if err := a.do(ctx, path, in, &wire); err != nil {
		return nil, err
	}

	out := &UpdateWorkerScheduleOutput{
		AssignedSessions: wire.AssignedSessions,
		UpdateInterval:   time.Duration(wire.UpdateIntervalSeconds) * time.Second,
	}
	for _, d := range wire.CancelDirectives {
		out.CancelDirectives = append(out.CancelDirectives, types.CancelDirective{
			SessionID: d.SessionID,
			ActionID:  d.ActionID,
			GraceTime: time.Duration(d.GraceTimeSeconds) * time.Second,
		})
	}
	return out, nil
}
