// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package snapmap implements a sharded, snapshot-consistent concurrent map.
//
// Unlike a conventional concurrent map, snapmap does not serialize writers
// against one another. Each caller that wants to mutate the map spawns a
// Writer, which owns a private shard of the overall key space. Writers
// almost never contend with each other; the only contention in the system
// is between writers and the (rare) consistent Snapshot reader.
//
// ## Overview
//
// This inversion is implemented with a single coordination primitive, the
// coordinator, that looks like a reader/writer lock with its polarity
// flipped: the many writers are its "shared" holders, and the one
// occasional Snapshot is its "exclusive" holder. A writer only needs
// shared access to the coordinator to mutate its own shard, because no
// other writer can ever touch that shard; a Snapshot needs exclusive
// access because it walks every shard at once and must not observe one
// mid-mutation.
//
// When a writer finds the coordinator held exclusively (a Snapshot is in
// progress) it does not block: it buffers the operation in a small
// per-writer deferred queue and returns immediately. The queue holds at
// most one pending operation per key and is merged into the writer's
// shard the next time that writer successfully acquires the coordinator.
// A Snapshot never observes these queues - only merged shard state - which
// is what makes the reader's view self-consistent without serializing
// writers through it.
//
//	+---------------+      shared       +---------------------+
//	|  Writer A      |------------------>|                     |
//	+---------------+                   |                     |
//	+---------------+      shared       |     coordinator     |
//	|  Writer B      |------------------>|                     |
//	+---------------+                   |                     |
//	+---------------+    exclusive      |                     |
//	|   Snapshot     |------------------>|                     |
//	+---------------+                   +---------------------+
//
// ## Non-goals
//
// snapmap does not provide durability, ordered iteration, range queries,
// or cross-writer atomicity. A key inserted by two different writers is
// not merged: both occurrences are visible to a Snapshot.
package snapmap
