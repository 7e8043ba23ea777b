package game

import (
	"fmt"
	"image/color"
	"sort"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/cb-v4s/ghoulies/internal/iso"
	"github.com/cb-v4s/ghoulies/protocol"
)

var whiteImage = ebiten.NewImage(3, 3)

func init() {
	whiteImage.Fill(color.White)
}

var (
	colBackground = color.NRGBA{0x06, 0x08, 0x14, 0xff}
	colTile       = color.NRGBA{0x2e, 0x34, 0x4e, 0xff}
	colTileEdge   = color.NRGBA{0x45, 0x4e, 0x6e, 0xff}
	colTileMark   = color.NRGBA{0xf1, 0x5a, 0x24, 0xff}
	colAvatar     = color.NRGBA{0xd8, 0xdc, 0xec, 0xff}
	colAvatarEye  = color.NRGBA{0x20, 0x24, 0x34, 0xff}
	colBubble     = color.NRGBA{0x1f, 0x28, 0x3b, 0xf0}
	colText       = color.White
	colDimText    = color.NRGBA{0xc8, 0xc8, 0xd2, 0xff}
)

// renderer draws one room frame from a session snapshot plus view state.
// Tile and avatar sprites are rasterized once and reused.
type renderer struct {
	cfg    Config
	tile   *ebiten.Image
	avatar *ebiten.Image
}

func newRenderer(cfg Config) *renderer {
	cfg = cfg.withDefaults()
	return &renderer{
		cfg:    cfg,
		tile:   buildTileSprite(cfg.Geometry),
		avatar: buildAvatarSprite(),
	}
}

// buildTileSprite rasterizes the floor diamond.
func buildTileSprite(g iso.Geometry) *ebiten.Image {
	w, h := g.TileWidth, g.TileHeight
	img := ebiten.NewImage(w, h)

	fw, fh := float32(w), float32(h)
	var p vector.Path
	p.MoveTo(fw/2, 0)
	p.LineTo(fw, fh/2)
	p.LineTo(fw/2, fh)
	p.LineTo(0, fh/2)
	p.Close()
	fillPath(img, &p, colTile)

	vector.StrokeLine(img, fw/2, 0, fw, fh/2, 1, colTileEdge, true)
	vector.StrokeLine(img, fw, fh/2, fw/2, fh, 1, colTileEdge, true)
	vector.StrokeLine(img, fw/2, fh, 0, fh/2, 1, colTileEdge, true)
	vector.StrokeLine(img, 0, fh/2, fw/2, 0, 1, colTileEdge, true)
	return img
}

// buildAvatarSprite rasterizes the little ghost facing right.
func buildAvatarSprite() *ebiten.Image {
	const w, h = 40, 52
	img := ebiten.NewImage(w, h)

	var p vector.Path
	p.MoveTo(2, h-2)
	p.LineTo(2, 20)
	p.Arc(w/2, 20, w/2-2, -3.14159, 0, vector.Clockwise)
	p.LineTo(w-2, h-2)
	// wavy hem
	p.LineTo(w-10, h-10)
	p.LineTo(w/2, h-2)
	p.LineTo(10, h-10)
	p.Close()
	fillPath(img, &p, colAvatar)

	// eyes, offset to the facing side
	vector.DrawFilledCircle(img, w/2+6, 18, 3, colAvatarEye, true)
	vector.DrawFilledCircle(img, w/2+14, 18, 3, colAvatarEye, true)
	return img
}

func fillPath(dst *ebiten.Image, p *vector.Path, c color.NRGBA) {
	vs, is := p.AppendVerticesAndIndicesForFilling(nil, nil)
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = float32(c.R) / 0xff
		vs[i].ColorG = float32(c.G) / 0xff
		vs[i].ColorB = float32(c.B) / 0xff
		vs[i].ColorA = float32(c.A) / 0xff
	}
	op := &ebiten.DrawTrianglesOptions{AntiAlias: true}
	dst.DrawTriangles(vs, is, whiteImage, op)
}

func (r *renderer) draw(screen *ebiten.Image, s *Session, v *View, intent iso.Tile, haveIntent bool) {
	screen.Fill(colBackground)

	r.drawFloor(screen, v, intent, haveIntent)

	users := s.Users()
	msgs := s.Messages()
	now := time.Now()

	// Painter's order: back rows first so front avatars overlap them.
	sorted := append([]RemoteUser(nil), users...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		return a.Tile.Row+a.Tile.Col < b.Tile.Row+b.Tile.Col
	})
	for _, u := range sorted {
		r.drawUser(screen, v, u)
	}

	// Bubbles float above everyone.
	for _, m := range msgs {
		if now.Sub(m.At) <= r.cfg.BubbleTTL {
			r.drawBubble(screen, v, m)
		}
	}

	r.drawChatLog(screen, v, msgs)
}

func (r *renderer) drawFloor(screen *ebiten.Image, v *View, intent iso.Tile, haveIntent bool) {
	g := r.cfg.Geometry
	for row := v.Visible.StartRow; row <= v.Visible.EndRow; row++ {
		for col := v.Visible.StartCol; col <= v.Visible.EndCol; col++ {
			p := iso.TileToScreen(iso.Tile{Row: row, Col: col}, v.Pan, g)
			op := &ebiten.DrawImageOptions{}
			op.GeoM.Translate(p.X, p.Y)
			screen.DrawImage(r.tile, op)
		}
	}

	if haveIntent {
		c := iso.TileCenter(intent, v.Pan, g)
		vector.StrokeCircle(screen, float32(c.X), float32(c.Y), 6, 2, colTileMark, true)
	}
}

// drawUser places the avatar on its tile, anchored the way the original
// sprites were: shifted up-left so the feet sit on the diamond.
func (r *renderer) drawUser(screen *ebiten.Image, v *View, u RemoteUser) {
	g := r.cfg.Geometry
	c := iso.TileCenter(u.Tile, v.Pan, g)

	w, h := r.avatar.Bounds().Dx(), r.avatar.Bounds().Dy()
	op := &ebiten.DrawImageOptions{}
	if u.Direction == protocol.Left {
		// Flip horizontally around the sprite's own center.
		op.GeoM.Scale(-1, 1)
		op.GeoM.Translate(float64(w), 0)
	}
	op.GeoM.Translate(c.X-float64(w)/2, c.Y-float64(h)+6)
	screen.DrawImage(r.avatar, op)

	label := u.Name
	if u.IsTyping {
		label += " ..."
	}
	lx := int(c.X) - len(label)*7/2
	text.Draw(screen, label, basicfont.Face7x13, lx, int(c.Y)+16, colDimText)
}

func (r *renderer) drawBubble(screen *ebiten.Image, v *View, m ChatMessage) {
	c := iso.TileCenter(m.Origin, v.Pan, r.cfg.Geometry)

	w := len(m.Text)*7 + 16
	h := 20
	x := int(c.X) - w/2
	y := int(c.Y) - 78

	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), colBubble, true)
	text.Draw(screen, m.Text, basicfont.Face7x13, x+8, y+14, colText)
}

// drawChatLog lists the recent messages bottom-left, newest first.
func (r *renderer) drawChatLog(screen *ebiten.Image, v *View, msgs []ChatMessage) {
	const maxLines = 6
	y := v.Height - 56
	for i := len(msgs) - 1; i >= 0 && i >= len(msgs)-maxLines; i-- {
		m := msgs[i]
		line := fmt.Sprintf("%s: %s", m.From, m.Text)
		text.Draw(screen, line, basicfont.Face7x13, 12, y, colDimText)
		y -= 16
	}
}
