package powerbi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

// relatedEntityTypeModel marks the data model entry among a report's related
// entity keys.
const relatedEntityTypeModel = 4

const grantTTL = 15 * time.Minute

type sharedListing struct {
	ODataContext string           `json:"@odata.context"`
	Entities     []sharedArtifact `json:"ArtifactAccessEntities"`
}

type sharedArtifact struct {
	ArtifactID  json.RawMessage `json:"artifactId"`
	DisplayName string          `json:"displayName"`
	Sharer      struct {
		DisplayName string `json:"displayName"`
	} `json:"sharer"`
}

// ListSharedTargets enumerates reports shared with the whole organization
// and resolves the tenant's backend cluster from the listing response. An
// empty or malformed listing is a fatal error; there is nothing to scan.
func (c *Client) ListSharedTargets(ctx context.Context) ([]models.ReportTarget, error) {
	endpoint := c.baseURL + "/v1.0/myorg/admin/widelySharedArtifacts/linksSharedToWholeOrganization"

	var listing sharedListing
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &listing); err != nil {
		return nil, eris.Wrap(err, "failed to list organization-wide shared reports")
	}

	region, err := regionFromContext(listing.ODataContext)
	if err != nil {
		return nil, err
	}

	targets := make([]models.ReportTarget, 0, len(listing.Entities))
	for _, entity := range listing.Entities {
		targets = append(targets, models.ReportTarget{
			ID:       idString(entity.ArtifactID),
			Name:     entity.DisplayName,
			SharedBy: entity.Sharer.DisplayName,
			Region:   region,
		})
	}
	if len(targets) == 0 {
		return nil, eris.New("no organization-wide shared reports returned")
	}

	return targets, nil
}

// regionFromContext extracts the backend cluster host from the listing's
// @odata.context metadata URL.
func regionFromContext(metadataURL string) (string, error) {
	parsed, err := url.Parse(metadataURL)
	if err != nil || parsed.Host == "" {
		return "", eris.Errorf("listing response has no usable @odata.context: %q", metadataURL)
	}
	return parsed.Host, nil
}

// accessGrant is the outcome of one pushaccess call. ArtifactID addresses
// the exploration endpoint, ModelID the conceptual schema endpoint.
type accessGrant struct {
	ArtifactID string
	ModelID    json.RawMessage
}

// pushAccess requests read access to a report and returns the artifact and
// data model ids the subsequent fetches need.
func (c *Client) pushAccess(ctx context.Context, region, reportID string) (*accessGrant, error) {
	endpoint := c.clusterURL(region, fmt.Sprintf("/metadata/access/reports/%s/pushaccess?forceRefreshGroups=true", reportID))

	var resp struct {
		EntityKey struct {
			ID json.RawMessage `json:"id"`
		} `json:"entityKey"`
		RelatedEntityKeys []struct {
			ID   json.RawMessage `json:"id"`
			Type int             `json:"type"`
		} `json:"relatedEntityKeys"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, nil, nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "failed to push access to report %s", reportID)
	}

	grant := &accessGrant{ArtifactID: idString(resp.EntityKey.ID)}
	for _, key := range resp.RelatedEntityKeys {
		if key.Type == relatedEntityTypeModel {
			grant.ModelID = key.ID
			break
		}
	}
	if len(grant.ModelID) == 0 {
		return nil, eris.Errorf("report %s has no data model entity", reportID)
	}

	return grant, nil
}

// conceptualSchema fetches the data model schema document for one model.
func (c *Client) conceptualSchema(ctx context.Context, region string, modelID json.RawMessage) (any, error) {
	endpoint := c.clusterURL(region, "/explore/conceptualschema")
	body := map[string]any{
		"modelIds":            []json.RawMessage{modelID},
		"userPreferredLocale": "en-US",
	}

	var doc any
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, nil, &doc); err != nil {
		return nil, eris.Wrap(err, "conceptual schema request failed")
	}
	return doc, nil
}

// exploration fetches the exploration document describing what the report's
// visuals actually query.
func (c *Client) exploration(ctx context.Context, region, artifactID string) (any, error) {
	endpoint := c.clusterURL(region, fmt.Sprintf("/explore/reports/%s/exploration", artifactID))

	var doc any
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &doc); err != nil {
		return nil, eris.Wrap(err, "exploration request failed")
	}
	return doc, nil
}

// SharedProvider fetches the per-report documents for reports shared with
// the whole organization. Access grants are cached so the schema and
// evidence fetches for one report share a single pushaccess call.
type SharedProvider struct {
	client *Client
	grants *Cache
}

// NewSharedProvider wraps a client for the organization-wide shared flow.
func NewSharedProvider(client *Client) *SharedProvider {
	return &SharedProvider{
		client: client,
		grants: NewCache(grantTTL),
	}
}

func (p *SharedProvider) grant(ctx context.Context, target models.ReportTarget) (*accessGrant, error) {
	if cached, ok := p.grants.Get(target.ID); ok {
		return cached.(*accessGrant), nil
	}

	grant, err := p.client.pushAccess(ctx, target.Region, target.ID)
	if err != nil {
		return nil, err
	}
	p.grants.Set(target.ID, grant)
	return grant, nil
}

// FetchConceptualSchema returns the data model schema document for target.
func (p *SharedProvider) FetchConceptualSchema(ctx context.Context, target models.ReportTarget) (any, error) {
	grant, err := p.grant(ctx, target)
	if err != nil {
		return nil, err
	}
	return p.client.conceptualSchema(ctx, target.Region, grant.ModelID)
}

// FetchEvidence returns the exploration document for target.
func (p *SharedProvider) FetchEvidence(ctx context.Context, target models.ReportTarget) (any, error) {
	grant, err := p.grant(ctx, target)
	if err != nil {
		return nil, err
	}
	return p.client.exploration(ctx, target.Region, grant.ArtifactID)
}
