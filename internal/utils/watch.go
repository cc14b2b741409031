/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"io"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/log"
)

// WatchDir calls cb for every event under dir until the returned closer is closed.
func WatchDir(dir string, cb func(op fsnotify.Op, file string)) (io.Closer, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "new watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				cb(ev.Op, ev.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watch %s: %v", dir, err)
			}
		}
	}()
	return w, nil
}

// WatchFiles calls cb with the path of any of files that is written or
// (re)created. The parent directories are watched so editors that replace
// files on save are seen too.
func WatchFiles(files []string, cb func(file string)) (io.Closer, error) {
	byDir := map[string]map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s", f)
		}
		dir := filepath.Dir(abs)
		if byDir[dir] == nil {
			byDir[dir] = map[string]bool{}
		}
		byDir[dir][abs] = true
	}

	closers := make(multiCloser, 0, len(byDir))
	for dir, names := range byDir {
		names := names
		c, err := WatchDir(dir, func(op fsnotify.Op, file string) {
			if op&(fsnotify.Write|fsnotify.Create) == 0 {
				return
			}
			if abs, err := filepath.Abs(file); err == nil && names[abs] {
				cb(abs)
			}
		})
		if err != nil {
			closers.Close()
			return nil, err
		}
		closers = append(closers, c)
	}
	return closers, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
