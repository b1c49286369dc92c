package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/woozymasta/geoconv/internal/config"
	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/render"

	"github.com/chai2010/webp"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Defaults applied when Composite is called with zero limits.
const (
	DefaultConcurrency = 6
	DefaultTileTimeout = 7 * time.Second
)

// maxTileZoom is the deepest zoom requested from tile servers.
const maxTileZoom = 19

// Basemap fetches slippy-map tiles and composites them under raster exports.
type Basemap struct {
	client    *http.Client
	urlTpl    string
	cacheDir  string
	userAgent string
	quality   float32
}

type job struct {
	Tile maptile.Tile
}

type result struct {
	Tile  maptile.Tile
	Image image.Image
	Err   error
}

// NewBasemap returns a tile source configured from cfg. A nil client uses http.DefaultClient.
func NewBasemap(client *http.Client, cfg config.Basemap) *Basemap {
	if client == nil {
		client = http.DefaultClient
	}
	return &Basemap{
		client:    client,
		urlTpl:    cfg.URL,
		cacheDir:  cfg.CacheDir,
		userAgent: cfg.UserAgent,
		quality:   80,
	}
}

// Composite draws the tiles covering view onto dst. Tiles are fetched by
// at most concurrency workers, each bounded by timeout. It returns the
// "z/x/y" names of tiles that could not be drawn. Cancelling ctx yields a
// Canceled error; a render in which every tile failed yields DownstreamIO.
func (b *Basemap) Composite(ctx context.Context, dst draw.Image, view render.View, concurrency int, timeout time.Duration) ([]string, error) {
	if b.urlTpl == "" {
		return nil, geo.Errorf(geo.KindDownstreamIO, "basemap URL is not configured")
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultTileTimeout
	}

	z := tileZoom(view.Zoom)
	tiles := coveringTiles(view, z)
	if len(tiles) == 0 {
		return nil, nil
	}

	log.Debug().
		Int("zoom", int(z)).
		Int("tiles", len(tiles)).
		Int("concurrency", concurrency).
		Msg("Compositing basemap")

	results := b.fetchBatch(ctx, tiles, concurrency, timeout)
	if err := ctx.Err(); err != nil {
		return nil, geo.WrapError(geo.KindCanceled, err, "basemap canceled")
	}

	scale := math.Exp2(view.Zoom - float64(z))
	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, tileName(res.Tile))
			continue
		}
		placeTile(dst, res.Image, res.Tile, view, scale)
	}

	sort.Strings(failed)
	if len(failed) == len(tiles) {
		return failed, geo.Errorf(geo.KindDownstreamIO, "all %d basemap tiles failed", len(tiles))
	}
	return failed, nil
}

// fetchBatch downloads tiles with a fixed worker pool; results keep the input order.
func (b *Basemap) fetchBatch(ctx context.Context, tiles []maptile.Tile, concurrency int, timeout time.Duration) []result {
	jobs := make(chan int, len(tiles))
	results := make([]result, len(tiles))

	go func() {
		for i := range tiles {
			jobs <- i
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < min(concurrency, len(tiles)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				j := job{Tile: tiles[idx]}
				if err := ctx.Err(); err != nil {
					results[idx] = result{Tile: j.Tile, Err: err}
					continue
				}
				tctx, cancel := context.WithTimeout(ctx, timeout)
				img, err := b.tile(tctx, j)
				cancel()
				if err != nil {
					log.Trace().
						Err(err).
						Str("tile", tileName(j.Tile)).
						Msg("Failed to fetch tile")
				}
				results[idx] = result{Tile: j.Tile, Image: img, Err: err}
			}
		}()
	}
	wg.Wait()

	return results
}

// tile returns a tile from the cache, or downloads it and fills the cache.
func (b *Basemap) tile(ctx context.Context, j job) (image.Image, error) {
	cachePath := b.cachePath(j.Tile)
	if cachePath != "" {
		if img, ok := readCachedTile(cachePath); ok {
			return img, nil
		}
	}

	img, err := b.download(ctx, j.Tile)
	if err != nil {
		return nil, err
	}

	if cachePath != "" {
		if err := b.writeCache(cachePath, img); err != nil {
			log.Debug().Err(err).Str("path", cachePath).Msg("Failed to cache tile")
		}
	}
	return img, nil
}

func (b *Basemap) download(ctx context.Context, t maptile.Tile) (image.Image, error) {
	url := buildURL(b.urlTpl, t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}

	// servers answer out-of-range requests with 1px placeholders
	if img.Bounds().Dx() <= 1 {
		return nil, errors.New("empty tile")
	}
	return img, nil
}

func (b *Basemap) cachePath(t maptile.Tile) string {
	if b.cacheDir == "" {
		return ""
	}
	return filepath.Join(
		b.cacheDir,
		strconv.Itoa(int(t.Z)),
		strconv.Itoa(int(t.X)),
		strconv.Itoa(int(t.Y))+".webp")
}

func readCachedTile(path string) (image.Image, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		log.Trace().Err(err).Str("path", path).Msg("Ignoring unreadable cached tile")
		return nil, false
	}
	return img, true
}

func (b *Basemap) writeCache(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return webp.Encode(f, img, &webp.Options{Lossless: false, Quality: b.quality})
}

// tileZoom picks the integer tile zoom for a view zoom.
func tileZoom(zoom float64) maptile.Zoom {
	z := math.Floor(zoom + 1e-9)
	if z < 0 {
		z = 0
	}
	if z > maxTileZoom {
		z = maxTileZoom
	}
	return maptile.Zoom(z)
}

// coveringTiles lists the tiles at zoom z intersecting view, row by row.
func coveringTiles(view render.View, z maptile.Zoom) []maptile.Tile {
	span := geo.TileSize * math.Exp2(view.Zoom-float64(z))
	n := 1 << uint(z)

	x0 := clampIndex(math.Floor(view.X/span), n)
	y0 := clampIndex(math.Floor(view.Y/span), n)
	x1 := clampIndex(math.Ceil((view.X+float64(view.Width))/span)-1, n)
	y1 := clampIndex(math.Ceil((view.Y+float64(view.Height))/span)-1, n)

	var tiles []maptile.Tile
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			tiles = append(tiles, maptile.Tile{X: uint32(x), Y: uint32(y), Z: z})
		}
	}
	return tiles
}

func clampIndex(v float64, n int) int {
	if v < 0 {
		return 0
	}
	if v > float64(n-1) {
		return n - 1
	}
	return int(v)
}

// placeTile scales a tile into its viewport rectangle.
func placeTile(dst draw.Image, img image.Image, t maptile.Tile, view render.View, scale float64) {
	span := geo.TileSize * scale
	left := float64(t.X)*span - view.X
	top := float64(t.Y)*span - view.Y
	rect := image.Rect(
		int(math.Floor(left)),
		int(math.Floor(top)),
		int(math.Ceil(left+span)),
		int(math.Ceil(top+span)),
	)
	if !rect.Overlaps(dst.Bounds()) {
		return
	}
	if rect.Dx() == img.Bounds().Dx() && rect.Dy() == img.Bounds().Dy() {
		draw.Draw(dst, rect, img, img.Bounds().Min, draw.Over)
		return
	}
	xdraw.BiLinear.Scale(dst, rect, img, img.Bounds(), draw.Over, nil)
}

func tileName(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

func buildURL(tpl string, t maptile.Tile) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.Itoa(int(t.Z)))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(int(t.X)))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(int(t.Y)))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << t.Z) - 1
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(maxCoord-int(t.Y)))
	}

	return s
}
