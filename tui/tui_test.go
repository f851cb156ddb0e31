package tui

import (
	"strings"
	"testing"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"[trace]   0 selector                          pass", kindTrace},
		{"Quest offered: Bounty from captain [abc]", kindQuest},
		{"Quest abc12345: succeeded", kindQuest},
		{"  reward 25 coin", kindDetail},
		{"  reputation watch +10", kindDetail},
		{"  world effect route_secured", kindDetail},
		{"orc1 -> strike (pc)", kindIntent},
		{"orc1 -> heal", kindIntent},
		{"Decide failed: unknown archetype", kindError},
		{"Error: unknown condition", kindError},
		{"Unknown command: dance. Type /help for available commands.", kindError},
		{"orc1 enters as Raider (red_sashes).", kindNormal},
		{"Tick 3.", kindNormal},
		{"", kindNormal},
	}
	for _, tt := range tests {
		got := classifyLine(tt.line)
		if got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"short line untouched", "hello world", 80, "hello world"},
		{"zero width untouched", "hello world", 0, "hello world"},
		{"wraps at boundary", "aaa bbb ccc", 7, "aaa bbb\nccc"},
		{"long word on its own line", "aaa bbbbbbbbbb cc", 6, "aaa\nbbbbbbbbbb\ncc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wordWrap(tt.text, tt.width)
			if got != tt.want {
				t.Errorf("wordWrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestWordWrap_NoLineExceedsWidth(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog near the riverbank"
	for _, line := range strings.Split(wordWrap(text, 16), "\n") {
		if len(line) > 16 {
			t.Errorf("line %q exceeds width 16", line)
		}
	}
}

func TestHistory_PushAndPrev(t *testing.T) {
	h := NewHistory(10)
	h.Push("spawn raider orc1")
	h.Push("decide orc1")
	h.Push("tick")

	cmd, ok := h.Prev()
	if !ok || cmd != "tick" {
		t.Errorf("first Prev = %q, %v", cmd, ok)
	}
	cmd, ok = h.Prev()
	if !ok || cmd != "decide orc1" {
		t.Errorf("second Prev = %q, %v", cmd, ok)
	}
	cmd, ok = h.Prev()
	if !ok || cmd != "spawn raider orc1" {
		t.Errorf("third Prev = %q, %v", cmd, ok)
	}
	// At the oldest entry, Prev stays put.
	cmd, ok = h.Prev()
	if !ok || cmd != "spawn raider orc1" {
		t.Errorf("fourth Prev = %q, %v", cmd, ok)
	}
}

func TestHistory_Next(t *testing.T) {
	h := NewHistory(10)
	h.Push("a")
	h.Push("b")

	h.Prev() // "b"
	h.Prev() // "a"

	cmd, ok := h.Next()
	if !ok || cmd != "b" {
		t.Errorf("Next = %q, %v", cmd, ok)
	}
	// Past the newest entry: back to fresh input.
	if cmd, ok := h.Next(); ok {
		t.Errorf("Next past end = %q, want none", cmd)
	}
	// Cursor is reset; the next Prev starts from the newest again.
	if cmd, _ := h.Prev(); cmd != "b" {
		t.Errorf("Prev after reset = %q", cmd)
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(10)
	if _, ok := h.Prev(); ok {
		t.Error("Prev on empty history")
	}
	if _, ok := h.Next(); ok {
		t.Error("Next on empty history")
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory(3)
	h.Push("a")
	h.Push("b")
	h.Push("c")
	h.Push("d")

	var got []string
	for {
		cmd, ok := h.Prev()
		if !ok {
			break
		}
		got = append(got, cmd)
		if len(got) > 1 && got[len(got)-1] == got[len(got)-2] {
			got = got[:len(got)-1]
			break
		}
	}
	want := []string{"d", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHistory_NoConsecutiveDuplicates(t *testing.T) {
	h := NewHistory(10)
	h.Push("tick")
	h.Push("tick")
	h.Push("tick")

	h.Prev()
	if cmd, _ := h.Prev(); cmd != "tick" {
		t.Errorf("unexpected entry %q", cmd)
	}
	if len(h.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(h.entries))
	}
}

func TestHistory_ResetCursor(t *testing.T) {
	h := NewHistory(10)
	h.Push("a")
	h.Push("b")
	h.Prev()
	h.Prev()
	h.ResetCursor()

	if cmd, _ := h.Prev(); cmd != "b" {
		t.Errorf("Prev after reset = %q, want newest", cmd)
	}
}
