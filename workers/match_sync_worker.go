// workers/match_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hustletexas/cyber-arcade-verse-rally-sub004/models"
)

// MatchSyncClient mirrors the tournament service's 1v1 match rosters into
// the local tournament_matches table so the participant check never leaves
// this service's database.
type MatchSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewMatchSyncClient(db *gorm.DB) *MatchSyncClient {
	baseURL := os.Getenv("TOURNAMENT_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("TOURNAMENT_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("PROOF_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("PROOF_SERVICE_TOKEN environment variable is required for match sync")
	}

	return &MatchSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetChangedMatches fetches matches updated since the given time.
func (c *MatchSyncClient) GetChangedMatches(ctx context.Context, since time.Time) ([]models.TournamentMatch, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/matches", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tournament service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tournament service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Matches []models.TournamentMatch `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}

	return response.Matches, nil
}

// SyncOnce upserts a batch of roster rows. Roster changes between rounds
// must land here before the next participant check reads them.
func (c *MatchSyncClient) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	matches, err := c.GetChangedMatches(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	if err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&matches).Error; err != nil {
		return 0, fmt.Errorf("failed to upsert matches: %w", err)
	}

	return len(matches), nil
}

// PollMatches runs the mirror loop until ctx is cancelled.
func PollMatches(ctx context.Context, client *MatchSyncClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Start a full day back so a restart repairs a stale mirror
	lastSync := time.Now().Add(-24 * time.Hour)

	for {
		select {
		case <-ctx.Done():
			log.Println("Match sync worker stopping...")
			return
		case <-ticker.C:
			syncStart := time.Now()
			n, err := client.SyncOnce(ctx, lastSync)
			if err != nil {
				log.Printf("❌ [MATCH_SYNC] Sync failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("✅ [MATCH_SYNC] Mirrored %d match(es)", n)
			}
			lastSync = syncStart
		}
	}
}
