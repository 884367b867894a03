// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"lifequest-engine/models"
	"lifequest-engine/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile matches the JSON the account service exposes for syncing.
// Only the fields the planner cares about are mirrored.
type RemoteProfile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	TrackID     *string   `json:"track_id,omitempty"`
	TimeDaily   int       `json:"time_daily"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileChangesResponse is the top-level structure of the sync endpoint response.
type ProfileChangesResponse struct {
	Profiles []RemoteProfile `json:"profiles"`
}

// ProfileSyncWorker keeps the local user_profiles mirror current so the
// planner never calls the account service on the request path.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, accountServiceURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      accountServiceURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (account-service → user_profiles)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime finds the most recent UpdatedAt in the local mirror.
func (w *ProfileSyncWorker) lastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM user_profiles WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches profile changes since the given time and upserts them
// into the local mirror.
func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid account service URL '%s': %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("updated_since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sync endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var changes ProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return fmt.Errorf("failed to decode sync response: %w", err)
	}
	if len(changes.Profiles) == 0 {
		return nil
	}

	rows := make([]models.UserProfile, 0, len(changes.Profiles))
	for _, p := range changes.Profiles {
		if p.UserID == "" {
			continue
		}
		timeDaily := p.TimeDaily
		if timeDaily <= 0 {
			timeDaily = 30
		}
		rows = append(rows, models.UserProfile{
			UserID:      p.UserID,
			DisplayName: utils.NormalizeDisplayName(p.DisplayName),
			TrackID:     p.TrackID,
			TimeDaily:   timeDaily,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	err = w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "track_id", "time_daily", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert profiles: %w", err)
	}

	log.Printf("[SYNC] ✅ Mirrored %d profile change(s) since %s", len(rows), since.UTC().Format(time.RFC3339))
	return nil
}
