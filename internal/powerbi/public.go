package powerbi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

// resourceKeyHeader authenticates requests for publish-to-web reports. The
// key decoded from the embed link is the only credential involved.
const resourceKeyHeader = "X-PowerBI-ResourceKey"

// clusterURIPattern pulls the tenant's backend cluster out of the embed
// page's bootstrap script.
var clusterURIPattern = regexp.MustCompile(`var resolvedClusterUri = 'https://(.*?)';`)

// ResourceKeyFromEmbedURL decodes the public resource key from an embed
// link. The link carries a base64 JSON blob in its "r" query parameter; the
// key sits under "k".
func ResourceKeyFromEmbedURL(embedURL string) (string, error) {
	parsed, err := url.Parse(embedURL)
	if err != nil {
		return "", eris.Wrapf(err, "invalid embed URL %q", embedURL)
	}

	encoded := parsed.Query().Get("r")
	if encoded == "" {
		return "", eris.Errorf("embed URL %q has no encoded resource parameter", embedURL)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", eris.Wrapf(err, "embed URL %q carries malformed base64", embedURL)
	}

	var payload struct {
		ResourceKey string `json:"k"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return "", eris.Wrapf(err, "embed URL %q carries malformed resource JSON", embedURL)
	}
	if payload.ResourceKey == "" {
		return "", eris.Errorf("embed URL %q carries no resource key", embedURL)
	}

	return payload.ResourceKey, nil
}

// resolveCluster loads the embed page and extracts the backend cluster host
// from its bootstrap script. The redirect host is rewritten to the api host
// the data endpoints live on.
func (c *Client) resolveCluster(ctx context.Context, embedURL string) (string, error) {
	page, err := c.fetchText(ctx, embedURL)
	if err != nil {
		return "", eris.Wrap(err, "failed to load embed page")
	}

	match := clusterURIPattern.FindStringSubmatch(page)
	if match == nil {
		return "", eris.Errorf("embed page at %s does not expose a cluster URI", embedURL)
	}

	return strings.ReplaceAll(match[1], "redirect", "api"), nil
}

// modelsAndExploration fetches the combined models-and-exploration document
// for a publish-to-web report. The document doubles as the report's usage
// evidence.
func (c *Client) modelsAndExploration(ctx context.Context, cluster, resourceKey string) (any, error) {
	endpoint := c.clusterURL(cluster, fmt.Sprintf("/public/reports/%s/modelsAndExploration?preferReadOnlySession=true", resourceKey))
	headers := map[string]string{resourceKeyHeader: resourceKey}

	var doc any
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, headers, &doc); err != nil {
		return nil, eris.Wrap(err, "exploration request failed")
	}
	return doc, nil
}

// publicConceptualSchema fetches the schema document for a publish-to-web
// report's data model.
func (c *Client) publicConceptualSchema(ctx context.Context, cluster string, modelID json.RawMessage, resourceKey string) (any, error) {
	endpoint := c.clusterURL(cluster, "/public/reports/conceptualschema")
	headers := map[string]string{resourceKeyHeader: resourceKey}
	body := map[string]any{"modelIds": []json.RawMessage{modelID}}

	var doc any
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, headers, &doc); err != nil {
		return nil, eris.Wrap(err, "conceptual schema request failed")
	}
	return doc, nil
}

// modelIDFrom picks the first model id out of a models-and-exploration
// document.
func modelIDFrom(doc any) (json.RawMessage, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, eris.New("exploration response is not an object")
	}
	items, ok := root["models"].([]any)
	if !ok || len(items) == 0 {
		return nil, eris.New("exploration response lists no models")
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return nil, eris.New("exploration response lists no models")
	}
	id, ok := first["id"]
	if !ok {
		return nil, eris.New("model entry has no id")
	}

	raw, err := json.Marshal(id)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode model id")
	}
	return raw, nil
}

// publicSession is the resolved state for one embed link: the backend
// cluster, the model id, and the exploration document fetched on the way.
type publicSession struct {
	cluster     string
	modelID     json.RawMessage
	exploration any
}

// PublicProvider fetches the per-report documents for reports published to
// the web through embed links. Resolved sessions are cached per resource key
// so the schema fetch reuses the exploration round trip.
type PublicProvider struct {
	client   *Client
	sessions *Cache
}

// NewPublicProvider wraps a client for the publish-to-web flow.
func NewPublicProvider(client *Client) *PublicProvider {
	return &PublicProvider{
		client:   client,
		sessions: NewCache(grantTTL),
	}
}

func (p *PublicProvider) session(ctx context.Context, target models.ReportTarget) (*publicSession, error) {
	if cached, ok := p.sessions.Get(target.ResourceKey); ok {
		return cached.(*publicSession), nil
	}

	cluster, err := p.client.resolveCluster(ctx, target.EmbedURL)
	if err != nil {
		return nil, err
	}

	doc, err := p.client.modelsAndExploration(ctx, cluster, target.ResourceKey)
	if err != nil {
		return nil, err
	}

	modelID, err := modelIDFrom(doc)
	if err != nil {
		return nil, eris.Wrapf(err, "report %s", target.Label())
	}

	session := &publicSession{cluster: cluster, modelID: modelID, exploration: doc}
	p.sessions.Set(target.ResourceKey, session)
	return session, nil
}

// FetchConceptualSchema returns the data model schema document for target.
func (p *PublicProvider) FetchConceptualSchema(ctx context.Context, target models.ReportTarget) (any, error) {
	session, err := p.session(ctx, target)
	if err != nil {
		return nil, err
	}
	return p.client.publicConceptualSchema(ctx, session.cluster, session.modelID, target.ResourceKey)
}

// FetchEvidence returns the exploration document for target. The document
// was already fetched while resolving the session, so this is usually a
// cache hit.
func (p *PublicProvider) FetchEvidence(ctx context.Context, target models.ReportTarget) (any, error) {
	session, err := p.session(ctx, target)
	if err != nil {
		return nil, err
	}
	return session.exploration, nil
}
