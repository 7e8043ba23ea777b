// Package iso holds the isometric grid math: tile<->screen projection and
// the visible-range computation. Everything here is pure; rendering and
// input hit-testing share these functions so they can never disagree.
package iso

import "math"

// Geometry describes the tile sprite metrics of the map.
type Geometry struct {
	TileWidth     int // "top only" sprite width, px
	TileHeight    int // "top only" sprite height, px
	OverlapWidth  int // horizontal draw overlap, px
	OverlapHeight int // vertical draw overlap, px
}

// ProjectedTileWidth is the effective horizontal footprint of one tile once
// overlap is subtracted from both sides.
func (g Geometry) ProjectedTileWidth() int {
	return g.TileWidth - g.OverlapWidth - g.OverlapHeight
}

func (g Geometry) ProjectedTileHeight() int {
	return g.TileHeight - g.OverlapWidth - g.OverlapHeight
}

// Point is a screen-space pixel position.
type Point struct {
	X, Y float64
}

// Tile is a grid cell address.
type Tile struct {
	Row, Col int
}

// Offset is the pan translation applied to the whole map.
type Offset struct {
	X, Y float64
}

// Range is the inclusive block of tile indices that must be drawn.
type Range struct {
	StartRow, StartCol int
	EndRow, EndCol     int
}

func limit(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// TileToScreen projects a tile address to the screen position of its sprite
// origin, under the given pan offset.
func TileToScreen(t Tile, pan Offset, g Geometry) Point {
	isoX := float64(t.Row - t.Col)
	isoY := float64(t.Row + t.Col)
	return Point{
		X: pan.X + isoX*(float64(g.TileWidth)/2-float64(g.OverlapWidth)),
		Y: pan.Y + isoY*(float64(g.TileHeight)/2-float64(g.OverlapHeight)),
	}
}

// TileCenter is the screen position at the visual middle of a tile's
// diamond. ScreenToTile(TileCenter(t)) round-trips to t for every in-grid
// tile; the sprite origin itself does not, because of the anchor
// correction below.
func TileCenter(t Tile, pan Offset, g Geometry) Point {
	p := TileToScreen(t, pan, g)
	return Point{
		X: p.X + float64(g.ProjectedTileWidth())/2,
		Y: p.Y + float64(g.ProjectedTileHeight())/2,
	}
}

// ScreenToTile is the inverse projection, clamped to the grid. screenX and
// screenY are map-relative, i.e. the caller subtracts the pan offset first.
// The -1 on the row is an empirical correction that lines hit-testing up
// with the sprite anchor; without it clicks land one row off.
func ScreenToTile(screenX, screenY float64, g Geometry, gridSize int) Tile {
	mappedX := screenX / float64(g.ProjectedTileWidth())
	mappedY := screenY / float64(g.ProjectedTileHeight())

	row := limit(int(math.Round(mappedX+mappedY))-1, 0, gridSize-1)
	col := limit(int(math.Round(-mappedX+mappedY)), 0, gridSize-1)
	return Tile{Row: row, Col: col}
}

// ScreenToTileUnclamped reports the raw inverse projection and whether it
// falls inside the grid. Input uses it to reject clicks outside the map
// instead of snapping them to the border.
func ScreenToTileUnclamped(screenX, screenY float64, g Geometry, gridSize int) (Tile, bool) {
	mappedX := screenX / float64(g.ProjectedTileWidth())
	mappedY := screenY / float64(g.ProjectedTileHeight())

	row := int(math.Round(mappedX+mappedY)) - 1
	col := int(math.Round(-mappedX + mappedY))
	t := Tile{Row: row, Col: col}
	ok := row >= 0 && row < gridSize && col >= 0 && col < gridSize
	return t, ok
}

// ComputeRenderRange derives the block of tiles visible through a viewport
// of the given pixel size under the given pan offset. The anchor is the
// tile under the viewport's top-left corner; the window extends
// half the visible diagonal each way and is clamped to the grid. Callers
// must recompute on every pan delta and on every resize.
func ComputeRenderRange(pan Offset, viewportW, viewportH int, g Geometry, gridSize int) Range {
	first := ScreenToTile(-pan.X, -pan.Y, g, gridSize)

	viewportRows := int(math.Ceil(float64(viewportW) / float64(g.ProjectedTileWidth())))
	viewportCols := int(math.Ceil(float64(viewportH) / float64(g.ProjectedTileHeight())))

	maxVisibleTiles := viewportRows + viewportCols
	halfVisibleTiles := (maxVisibleTiles + 1) / 2

	r := Range{
		StartRow: max(first.Row, 0),
		StartCol: max(first.Col-halfVisibleTiles+1, 0),
		EndRow:   min(first.Row+maxVisibleTiles, gridSize-1),
		EndCol:   min(first.Col+halfVisibleTiles+1, gridSize-1),
	}
	return r
}
