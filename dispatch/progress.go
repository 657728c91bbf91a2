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

package dispatch

// Progress is the observer interface long-running phases report to, kept
// separate from the phases themselves so `dsk` and `graph` never import a
// concrete progress-bar library directly (spec.md §9's "progress
// notification is a separate observer interface, not entangled with the
// iterator"). Init starts a new bar of the given total (0 for an
// indeterminate/spinner bar) labeled message; Inc advances it by n;
// SetMessage changes its label without advancing it; Finish marks it
// complete.
type Progress interface {
	Init(total int64, message string)
	Inc(n int64)
	SetMessage(message string)
	Finish()
}

// NoopProgress discards every call, the default every library entry
// point falls back to when no caller-supplied Progress is given.
type NoopProgress struct{}

func (NoopProgress) Init(total int64, message string) {}
func (NoopProgress) Inc(n int64)                       {}
func (NoopProgress) SetMessage(message string)         {}
func (NoopProgress) Finish()                           {}
