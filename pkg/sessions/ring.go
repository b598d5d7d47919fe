/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sessions

// replayRing keeps the most recent output chunks of one session.
type replayRing struct {
	chunks [][]byte
	start  int
	size   int
}

func newReplayRing(capacity int) *replayRing {
	return &replayRing{chunks: make([][]byte, capacity)}
}

// push stores a copy of chunk, evicting the oldest entry when full.
func (r *replayRing) push(chunk []byte) {
	if len(r.chunks) == 0 {
		return
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	if r.size < len(r.chunks) {
		r.chunks[(r.start+r.size)%len(r.chunks)] = buf
		r.size++

		return
	}

	r.chunks[r.start] = buf
	r.start = (r.start + 1) % len(r.chunks)
}

// snapshot returns the stored chunks oldest first.
func (r *replayRing) snapshot() [][]byte {
	out := make([][]byte, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.chunks[(r.start+i)%len(r.chunks)]
	}

	return out
}
