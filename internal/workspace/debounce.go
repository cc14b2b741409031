// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workspace

import (
	"time"
)

// debouncer runs the most recently scheduled func once the delay passes
// without another schedule. All methods must be called with the owner's lock
// held; the timer callback takes the lock itself via lock/unlock.
type debouncer struct {
	delay  time.Duration
	lock   func()
	unlock func()

	timer *time.Timer
	gen   uint64
	fn    func()
}

func (d *debouncer) schedule(fn func()) {
	d.fn = fn
	if d.delay <= 0 {
		d.run()
		return
	}
	d.stop()
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.lock()
		defer d.unlock()
		// a newer schedule, flush or cancel happened while we waited for the lock
		if d.gen == gen {
			d.run()
		}
	})
}

func (d *debouncer) run() {
	fn := d.fn
	d.fn = nil
	d.stop()
	if fn != nil {
		fn()
	}
}

// flush runs the pending func now, if any.
func (d *debouncer) flush() {
	if d.fn != nil {
		d.run()
	}
}

// cancel drops the pending func.
func (d *debouncer) cancel() {
	d.fn = nil
	d.stop()
}

func (d *debouncer) pending() bool {
	return d.fn != nil
}

func (d *debouncer) stop() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
