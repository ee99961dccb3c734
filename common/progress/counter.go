// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package progress

import "sync/atomic"

// Progressor can be implemented to allow an object to hook up to a
// progress.Bar.
type Progressor interface {
	// Progress returns the amount completed and the total amount to reach
	// 100%.
	Progress() (current, max int64)
}

// Updateable is a Progressor which also exposes the ability for the
// progressing value to be updated.
type Updateable interface {
	Progressor

	// Inc increments the progressor's current value by the given amount.
	Inc(amount int64)

	// Set sets the progressor's current value.
	Set(amount int64)
}

// CountProgressor is a thread-safe Progressor over a counted amount with a
// fixed maximum. A maximum of zero means the total is unknown.
type CountProgressor struct {
	max, current int64
}

// NewCounter returns a CountProgressor with the given maximum.
func NewCounter(max int64) *CountProgressor {
	return &CountProgressor{max, 0}
}

func (c *CountProgressor) Progress() (int64, int64) {
	current := atomic.LoadInt64(&c.current)
	return current, c.max
}

func (c *CountProgressor) Inc(amount int64) {
	atomic.AddInt64(&c.current, amount)
}

func (c *CountProgressor) Set(amount int64) {
	atomic.StoreInt64(&c.current, amount)
}
