// Package extension implements the chart extension operations. Each operation
// receives its collaborators explicitly; nothing here holds state between calls.
package extension

import (
	"context"
	"fmt"

	"chart-extension/internal/connect"
	"chart-extension/internal/logging"
	"chart-extension/internal/models"

	"golang.org/x/sync/errgroup"
)

// AssetStatusActive is the subscription asset status counted by the chart.
const AssetStatusActive = "active"

// InstallationUpdater persists installation fields on the platform.
type InstallationUpdater interface {
	UpdateInstallation(ctx context.Context, id string, payload interface{}) (models.Installation, error)
}

// MarketplaceLister streams the marketplace catalog.
type MarketplaceLister interface {
	EachMarketplace(ctx context.Context, fields []string, fn func(models.Marketplace) error) error
}

// Counter counts the items of a collection matching a filter.
type Counter interface {
	Count(ctx context.Context, collection string, filter connect.Filter) (int, error)
}

// RetrieveSettings returns the settings stored on inst, with an empty
// marketplace selection when none was saved yet.
func RetrieveSettings(inst models.Installation) (models.Settings, error) {
	return inst.ExtensionSettings()
}

// SaveSettings replaces the installation settings with settings and echoes
// them back. There is no merge and no concurrency check: the last write wins.
func SaveSettings(ctx context.Context, client InstallationUpdater, cc models.CallContext, settings models.Settings) (models.Settings, error) {
	if err := settings.Validate(); err != nil {
		return models.Settings{}, err
	}
	payload := map[string]interface{}{"settings": settings}
	if _, err := client.UpdateInstallation(ctx, cc.InstallationID, payload); err != nil {
		return models.Settings{}, fmt.Errorf("update installation %s: %w", cc.InstallationID, err)
	}
	logging.FromContext(ctx).Info().
		Str("installation_id", cc.InstallationID).
		Int("marketplaces", len(settings.Marketplaces)).
		Msg("settings saved")
	return settings, nil
}

// ListMarketplaces drains the marketplace catalog, in API order.
func ListMarketplaces(ctx context.Context, client MarketplaceLister) ([]models.Marketplace, error) {
	out := []models.Marketplace{}
	err := client.EachMarketplace(ctx, models.MarketplaceFields, func(mp models.Marketplace) error {
		out = append(out, mp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list marketplaces: %w", err)
	}
	return out, nil
}

// ActiveAssetsFilter matches the active subscription assets of one marketplace.
func ActiveAssetsFilter(marketplaceID string) connect.Filter {
	return connect.Eq("marketplace.id", marketplaceID).And("status", AssetStatusActive)
}

// GenerateChartData counts the active subscription assets of every selected
// marketplace and returns them as a bar chart, one bar per marketplace in
// selection order. A marketplace selected more than once gets a single bar.
// At most parallelism counts are in flight at a time.
func GenerateChartData(ctx context.Context, client Counter, inst models.Installation, parallelism int) (models.Chart, error) {
	settings, err := inst.ExtensionSettings()
	if err != nil {
		return models.Chart{}, err
	}
	labels := uniqueIDs(settings.MarketplaceIDs())
	values := make([]int, len(labels))

	if parallelism <= 0 {
		parallelism = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, id := range labels {
		i, id := i, id
		g.Go(func() error {
			n, err := client.Count(gctx, connect.CollectionAssets, ActiveAssetsFilter(id))
			if err != nil {
				return fmt.Errorf("count active assets of %s: %w", id, err)
			}
			values[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Chart{}, err
	}
	return models.NewBarChart(models.ChartDatasetSubscriptions, labels, values), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
