package registrysync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/models"
)

type registryClient struct {
	baseURL   string
	vendorKey string
	userKey   string
	http      *http.Client
	limiter   <-chan time.Time
}

// newRegistryClient builds the rate-limited HTTP client for one site's
// credentials. The registry authenticates with basic auth, vendor key as the
// username and user key as the password.
func newRegistryClient(vendorKey, userKey string, sandbox bool) (*registryClient, error) {
	if strings.TrimSpace(vendorKey) == "" || strings.TrimSpace(userKey) == "" {
		return nil, configErr("registry api keys are empty")
	}
	envVar := "REGISTRY_API_BASE_URL"
	fallback := "https://api.registry.example.com"
	if sandbox {
		envVar = "REGISTRY_SANDBOX_API_BASE_URL"
		fallback = "https://sandbox-api.registry.example.com"
	}
	baseURL := strings.TrimSpace(os.Getenv(envVar))
	if baseURL == "" {
		baseURL = fallback
	}
	rateLimitPerMin := int64(50)
	if v := strings.TrimSpace(os.Getenv("REGISTRY_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &registryClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		vendorKey: vendorKey,
		userKey:   userKey,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

func (c *registryClient) do(ctx context.Context, method, path string, params url.Values, payload interface{}, out interface{}) error {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.vendorKey, c.userKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RegistryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return err
		}
	}
	return nil
}

func licenseParams(licenseNumber string, window TimeWindow) url.Values {
	params := url.Values{}
	params.Set("licenseNumber", licenseNumber)
	if window.LastModifiedStart != "" {
		params.Set("lastModifiedStart", window.LastModifiedStart)
	}
	if window.LastModifiedEnd != "" {
		params.Set("lastModifiedEnd", window.LastModifiedEnd)
	}
	return params
}

func (c *registryClient) ListFacilities(ctx context.Context) ([]RegistryFacility, error) {
	var out []RegistryFacility
	if err := c.do(ctx, http.MethodGet, "/facilities/v1", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) ListItems(ctx context.Context, licenseNumber string, window TimeWindow) ([]RegistryItem, error) {
	var out []RegistryItem
	if err := c.do(ctx, http.MethodGet, "/items/v1/active", licenseParams(licenseNumber, window), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) ListTags(ctx context.Context, licenseNumber string, tagType models.RegistryTagType) ([]RegistryTag, error) {
	var path string
	switch tagType {
	case models.TagTypePlant:
		path = "/tags/v1/plant/available"
	case models.TagTypePackage:
		path = "/tags/v1/package/available"
	default:
		return nil, errors.New("invalid tag type")
	}
	var out []RegistryTag
	if err := c.do(ctx, http.MethodGet, path, licenseParams(licenseNumber, TimeWindow{}), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) ListPlantBatches(ctx context.Context, licenseNumber string, window TimeWindow) ([]RegistryPlantBatch, error) {
	var out []RegistryPlantBatch
	if err := c.do(ctx, http.MethodGet, "/plantbatches/v1/active", licenseParams(licenseNumber, window), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) CreatePackage(ctx context.Context, licenseNumber string, req CreatePackageRequest) (*RegistryPackage, error) {
	// The registry accepts package creates as a batch array and does not echo
	// the created record, so fetch it back by tag after a successful create.
	if err := c.do(ctx, http.MethodPost, "/packages/v1/create", licenseParams(licenseNumber, TimeWindow{}), []CreatePackageRequest{req}, nil); err != nil {
		return nil, err
	}
	var created RegistryPackage
	if err := c.do(ctx, http.MethodGet, "/packages/v1/"+url.PathEscape(req.Tag), licenseParams(licenseNumber, TimeWindow{}), nil, &created); err != nil {
		// The create succeeded; return the tag even if the fetch-back failed.
		return &RegistryPackage{Label: req.Tag}, nil
	}
	return &created, nil
}

func (c *registryClient) ChangePlantBatchGrowthPhase(ctx context.Context, licenseNumber string, req GrowthPhaseRequest) error {
	return c.do(ctx, http.MethodPost, "/plantbatches/v1/growthphase", licenseParams(licenseNumber, TimeWindow{}), []GrowthPhaseRequest{req}, nil)
}
