// Package antireplay tracks which transport-frame counters have already
// been accepted on a secure channel, using the RFC 6479 sliding-window
// bitmap. The channel's counters only ever move forward, but the byte
// channel underneath makes no ordering promise, so the window tolerates
// reordering within its span while rejecting every duplicate.
package antireplay

const (
	wordMask = ^uintptr(0)
	// words are whatever the platform's pointer size is
	wordSizeLog = wordMask>>8&1 + wordMask>>16&1 + wordMask>>32&1
	wordSize    = 1 << wordSizeLog

	totalBits   = 1024
	wordBits    = wordSize * 8
	wordBitsLog = wordSizeLog + 3
	numWords    = totalBits / wordBits

	// WindowSize is how far behind the highest accepted counter a frame
	// may arrive and still be judged. One word of slack is reserved for
	// the word currently being cleared.
	WindowSize = uint64(totalBits - wordBits)
)

// Window is a sliding bitmap over frame counters. The zero value is ready
// to use. Not safe for concurrent use.
type Window struct {
	highest uint64
	words   [numWords]uintptr
}

// Reset returns the window to its initial state, for use after a rekey.
// Higher words need no clearing here; Check clears them as the window
// slides over them.
func (w *Window) Reset() {
	w.highest = 0
	w.words[0] = 0
}

// Check records counter and reports whether it was fresh: inside the
// window and never accepted before. Call it only after the frame has
// authenticated, or an attacker can burn counters.
func (w *Window) Check(counter uint64) bool {
	if counter+WindowSize < w.highest {
		return false
	}

	word := counter >> wordBitsLog

	if counter > w.highest {
		top := w.highest >> wordBitsLog
		// clear every word the window slides over, capped at one full
		// lap around the ring
		ahead := min(word-top, numWords)
		for i := uint64(1); i <= ahead; i++ {
			w.words[(top+i)%numWords] = 0
		}
		w.highest = counter
	}

	word %= numWords
	bit := counter & uint64(wordBits-1)

	old := w.words[word]
	w.words[word] = old | (1 << bit)
	return old != w.words[word]
}
