// Copyright © 2024 The gatbcore Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	logging "github.com/shenwei356/go-logging"
)

var log *logging.Logger

func init() {
	log = logging.MustGetLogger("gatb")

	var format string
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		format = "%{color}[%{time:15:04:05}] [%{level:.4s}]%{color:reset} %{message}"
	} else {
		format = "[%{time:15:04:05}] [%{level:.4s}] %{message}"
	}

	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, logging.MustStringFormatter(format))
	logging.SetBackend(backendFormatter)
}

// addLog redirects the logger to file, additionally to stderr when
// verbose is set, and returns the opened handle for the caller to close.
func addLog(file string, verbose bool) *os.File {
	fh, err := os.Create(file)
	if err != nil {
		log.Errorf("failed to create log file: %s", file)
		os.Exit(1)
	}

	plainFormat := "[%{time:15:04:05}] [%{level:.4s}] %{message}"
	fileBackend := logging.NewLogBackend(fh, "", 0)
	fileFormatter := logging.NewBackendFormatter(fileBackend, logging.MustStringFormatter(plainFormat))

	if verbose {
		var format string
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "%{color}[%{time:15:04:05}] [%{level:.4s}]%{color:reset} %{message}"
		} else {
			format = plainFormat
		}
		stderrBackend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
		stderrFormatter := logging.NewBackendFormatter(stderrBackend, logging.MustStringFormatter(format))
		logging.SetBackend(fileFormatter, stderrFormatter)
	} else {
		logging.SetBackend(fileFormatter)
	}

	return fh
}
