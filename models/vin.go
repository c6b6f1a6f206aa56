package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// VinInfo is the decoded vehicle identity used to prefill document VIN fields.
type VinInfo struct {
	Vin       string `json:"vin"`
	ModelYear string `json:"model_year"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Trim      string `json:"trim"`
}

type vinCacheEntry struct {
	info     *VinInfo
	cachedAt time.Time
}

// VinCache is a short-lived in-process cache for decode results. Entries are
// independent, expiry-only: no ordering guarantees. Once the map grows past
// maxEntries a put sweeps out every expired entry.
type VinCache struct {
	mu         sync.Mutex
	entries    map[string]vinCacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewVinCache(ttl time.Duration, maxEntries int) *VinCache {
	return &VinCache{
		entries:    make(map[string]vinCacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *VinCache) get(vin string) (*VinInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[vin]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.cachedAt) > c.ttl {
		delete(c.entries, vin)
		return nil, false
	}
	return entry.info, true
}

func (c *VinCache) put(vin string, info *VinInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[vin] = vinCacheEntry{info: info, cachedAt: c.now()}
	if len(c.entries) <= c.maxEntries {
		return
	}
	for key, entry := range c.entries {
		if c.now().Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *VinCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// VinDecoder calls the vPIC decode endpoint through the injected cache.
// The cache is owned by the caller's process lifecycle, not a package global.
type VinDecoder struct {
	client  *http.Client
	baseURL string
	cache   *VinCache
}

func NewVinDecoder(cache *VinCache) *VinDecoder {
	baseURL := os.Getenv("VIN_DECODER_URL")
	if baseURL == "" {
		baseURL = "https://vpic.nhtsa.dot.gov/api/vehicles"
	}
	return &VinDecoder{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		cache:   cache,
	}
}

type vpicResponse struct {
	Results []struct {
		ModelYear string `json:"ModelYear"`
		Make      string `json:"Make"`
		Model     string `json:"Model"`
		Trim      string `json:"Trim"`
	} `json:"Results"`
}

func (d *VinDecoder) Decode(ctx context.Context, vin string) (*VinInfo, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if len(vin) != 17 {
		return nil, errors.New("vin must be 17 characters")
	}

	if info, ok := d.cache.get(vin); ok {
		return info, nil
	}

	endpoint := fmt.Sprintf("%s/DecodeVinValues/%s?format=json", d.baseURL, url.PathEscape(vin))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vin decoder returned status %d", resp.StatusCode)
	}

	var decoded vpicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Results) == 0 {
		return nil, errors.New("vin could not be decoded")
	}

	r := decoded.Results[0]
	info := &VinInfo{
		Vin:       vin,
		ModelYear: r.ModelYear,
		Make:      r.Make,
		Model:     r.Model,
		Trim:      r.Trim,
	}
	d.cache.put(vin, info)
	return info, nil
}
