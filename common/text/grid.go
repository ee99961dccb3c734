// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package text

import (
	"fmt"
	"io"
	"strings"
)

// GridWriter collects rows of cells and writes them out with every column
// padded to its widest cell. The zero value is ready to use.
type GridWriter struct {
	// ColumnPadding is the number of spaces written between columns.
	ColumnPadding int
	// MinWidth is the minimum width every column is padded to.
	MinWidth int

	rows       [][]string
	currentRow int
	colWidths  []int
}

// WriteCell appends the given string as the next cell of the current row.
func (gw *GridWriter) WriteCell(data string) {
	for len(gw.rows) <= gw.currentRow {
		gw.rows = append(gw.rows, []string{})
	}
	gw.rows[gw.currentRow] = append(gw.rows[gw.currentRow], data)
}

// WriteCells appends the given strings as consecutive cells of the current
// row.
func (gw *GridWriter) WriteCells(data ...string) {
	for _, cell := range data {
		gw.WriteCell(cell)
	}
}

// EndRow terminates the current row of cells and begins a new one.
func (gw *GridWriter) EndRow() {
	gw.currentRow++
}

// Reset discards the grid's rows and resets the current row. Column widths
// learned from previous flushes are kept so consecutive grids stay aligned.
func (gw *GridWriter) Reset() {
	gw.rows = [][]string{}
	gw.currentRow = 0
}

// updateWidths widens the remembered column widths to cover the given ones.
// A width slice of a different shape replaces the remembered one.
func (gw *GridWriter) updateWidths(newWidths []int) {
	if gw.colWidths == nil || len(gw.colWidths) != len(newWidths) {
		// Copy so later widening cannot write through to the caller's slice.
		gw.colWidths = append([]int(nil), newWidths...)
		return
	}
	for i, w := range newWidths {
		if w > gw.colWidths[i] {
			gw.colWidths[i] = w
		}
	}
}

// calculateWidths returns the width of the widest cell of each column.
func (gw *GridWriter) calculateWidths() []int {
	colWidths := []int{}
	for _, row := range gw.rows {
		for i, cell := range row {
			if len(colWidths) <= i {
				colWidths = append(colWidths, 0)
			}
			if len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}
	return colWidths
}

// Flush writes the padded grid to the given writer, one line per row.
func (gw *GridWriter) Flush(w io.Writer) {
	gw.writeGrid(w, true)
}

// FlushRows is like Flush without newlines between rows, for callers that
// write their own separators.
func (gw *GridWriter) FlushRows(w io.Writer) {
	gw.writeGrid(w, false)
}

func (gw *GridWriter) writeGrid(w io.Writer, includeNewlines bool) {
	gw.updateWidths(gw.calculateWidths())
	padding := strings.Repeat(" ", gw.ColumnPadding)

	for _, row := range gw.rows {
		for i, cell := range row {
			width := gw.colWidths[i]
			if gw.MinWidth > width {
				width = gw.MinWidth
			}
			if i > 0 {
				fmt.Fprint(w, padding)
			}
			fmt.Fprintf(w, "%*s", width, cell)
		}
		if includeNewlines {
			fmt.Fprint(w, "\n")
		}
	}
}
