package boardimg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Stone values inside the client board matrix.
const (
	cellEmpty = 0
	cellBlack = 1
	cellWhite = 2
)

const (
	cellSize = 32
	margin   = 24
)

// RenderPNG rasterizes the client's board blob (a JSON NxN int matrix) into a
// shareable PNG. The blob is client-owned; when it does not parse as a matrix
// the caller gets an error and no room state is involved at all.
func RenderPNG(boardState string) ([]byte, error) {
	board, err := parseBoard(boardState)
	if err != nil {
		return nil, err
	}

	svg := buildSVG(board)
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}

	n := len(board)
	side := margin*2 + cellSize*(n-1)
	icon.SetTarget(0, 0, float64(side), float64(side))

	img := image.NewRGBA(image.Rect(0, 0, side, side))
	scanner := rasterx.NewScannerGV(side, side, img, img.Bounds())
	raster := rasterx.NewDasher(side, side, scanner)
	icon.Draw(raster, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func parseBoard(boardState string) ([][]int, error) {
	var board [][]int
	if err := json.Unmarshal([]byte(boardState), &board); err != nil {
		return nil, fmt.Errorf("board state is not a matrix: %w", err)
	}
	n := len(board)
	if n < 2 {
		return nil, fmt.Errorf("board too small: %d rows", n)
	}
	for i, row := range board {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), n)
		}
	}
	return board, nil
}

func buildSVG(board [][]int) string {
	n := len(board)
	side := margin*2 + cellSize*(n-1)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, side, side, side, side)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" style="fill:#dcb35c"/>`, side, side)

	// grid
	for i := 0; i < n; i++ {
		p := margin + i*cellSize
		fmt.Fprintf(&b, `<path d="M %d %d L %d %d" style="stroke:#000000;stroke-width:1;fill:none"/>`, margin, p, side-margin, p)
		fmt.Fprintf(&b, `<path d="M %d %d L %d %d" style="stroke:#000000;stroke-width:1;fill:none"/>`, p, margin, p, side-margin)
	}

	// star points on a full-size board
	if n == 19 {
		for _, i := range []int{3, 9, 15} {
			for _, j := range []int{3, 9, 15} {
				fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="3" style="fill:#000000"/>`,
					margin+j*cellSize, margin+i*cellSize)
			}
		}
	}

	// stones
	r := cellSize/2 - 2
	for i, row := range board {
		for j, cell := range row {
			if cell != cellBlack && cell != cellWhite {
				continue
			}
			fill := "#000000"
			if cell == cellWhite {
				fill = "#ffffff"
			}
			fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" style="fill:%s;stroke:#000000;stroke-width:1"/>`,
				margin+j*cellSize, margin+i*cellSize, r, fill)
		}
	}

	b.WriteString(`</svg>`)
	return b.String()
}
