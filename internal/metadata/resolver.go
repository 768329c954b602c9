package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/holderrewards/dashboard/pkg/logger"
)

const (
	DefaultIPFSGateway          = "ipfs.io"
	DefaultPlaceholderImageBase = "https://api.dicebear.com/7.x/identicon/svg?seed="
	DefaultRetries              = 2

	// placeholderHashLen is the number of sha256 hex chars used as the placeholder seed
	placeholderHashLen = 16
	// maxMetadataSize bounds a metadata document body
	maxMetadataSize = 1 << 20
)

var (
	directImage = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|svg|avif|bmp)(\?.*)?$`)
	hexID       = regexp.MustCompile(`0x[0-9a-fA-F]+`)
)

// Options configures a Resolver.
type Options struct {
	// BaseURL is the metadata service, queried as GET <BaseURL>/<identifier>
	BaseURL string
	// IPFSGateway is the host used to rewrite ipfs:// URIs
	IPFSGateway string
	// PlaceholderImageBase is prefixed to the input hash when resolution fails
	PlaceholderImageBase string
	// Retries is the number of retries after the first attempt
	Retries int
	// InitialBackoff is the first retry delay
	InitialBackoff time.Duration
}

// Resolver turns token image or metadata URIs into displayable image URLs.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	logger *logger.Logger
	client *http.Client
	opts   Options
}

func NewResolver(opts Options, client *http.Client, logger *logger.Logger) *Resolver {
	if opts.IPFSGateway == "" {
		opts.IPFSGateway = DefaultIPFSGateway
	}
	if opts.PlaceholderImageBase == "" {
		opts.PlaceholderImageBase = DefaultPlaceholderImageBase
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Resolver{logger: logger, client: client, opts: opts}
}

// Resolve returns a usable image URL for uriOrID. It never fails: anything that
// cannot be resolved maps to a placeholder derived from the input, so the same
// input always yields the same output.
func (r *Resolver) Resolve(ctx context.Context, uriOrID string) string {
	input := strings.TrimSpace(uriOrID)
	if input == "" {
		return r.Placeholder(input)
	}

	if directImage.MatchString(input) {
		return r.rewriteIPFS(input)
	}
	if isIPFS(input) {
		return r.rewriteIPFS(input)
	}

	metadataURL := r.metadataURL(input)
	if metadataURL == "" {
		return r.Placeholder(input)
	}

	image, err := r.fetchImage(ctx, metadataURL)
	if err != nil {
		r.logger.Debug("Metadata resolution failed, using placeholder", "input", input, "error", err)
		return r.Placeholder(input)
	}
	return r.rewriteIPFS(image)
}

// Placeholder returns the deterministic fallback image for input.
func (r *Resolver) Placeholder(input string) string {
	sum := sha256.Sum256([]byte(input))
	return r.opts.PlaceholderImageBase + hex.EncodeToString(sum[:])[:placeholderHashLen]
}

func (r *Resolver) metadataURL(input string) string {
	if r.opts.BaseURL == "" {
		if isHTTP(input) {
			return input
		}
		return ""
	}
	id := hexID.FindString(input)
	if id == "" {
		id = input
	}
	return r.opts.BaseURL + "/" + id
}

func (r *Resolver) rewriteIPFS(uri string) string {
	if !isIPFS(uri) {
		return uri
	}
	path := uri[len("ipfs://"):]
	path = strings.TrimPrefix(path, "ipfs/")
	return fmt.Sprintf("https://%s/ipfs/%s", r.opts.IPFSGateway, path)
}

type metadataDocument struct {
	Image    *string `json:"image"`
	ImageURL string  `json:"image_url"`
}

func (r *Resolver) fetchImage(ctx context.Context, url string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.Retries)), ctx)

	var image string
	operation := func() error {
		doc, err := r.fetchDocument(ctx, url)
		if err != nil {
			return err
		}
		switch {
		case doc.Image != nil && *doc.Image != "":
			image = *doc.Image
		case doc.ImageURL != "":
			image = doc.ImageURL
		default:
			return backoff.Permanent(fmt.Errorf("metadata at %s has no image", url))
		}
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return image, nil
}

// fetchDocument performs one attempt. Errors that retrying cannot fix are
// marked permanent.
func (r *Resolver) fetchDocument(ctx context.Context, url string) (*metadataDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("metadata service returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("metadata service returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, err
	}
	var doc metadataDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid metadata document: %w", err))
	}
	return &doc, nil
}

func isIPFS(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "ipfs://")
}

func isHTTP(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
