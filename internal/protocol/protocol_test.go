package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	msgs := []Message{
		NewRequest("install", []string{"vim", "htop"}, []string{"--needed"}),
		NewLog(StreamStdout, "resolving dependencies...", 1),
		NewLog(StreamStderr, "warning: foo is up to date", 1),
		NewResult(0, false),
		NewResult(1, true),
		NewRejected("flag \"--dbpath\" not allowed"),
		NewCancel("canceled by user"),
		NewInput("y"),
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, m := range msgs {
		if err := enc.Send(m); err != nil {
			t.Fatalf("Send(%s) error = %v", m.Type, err)
		}
	}

	dec := NewDecoder(&buf)
	for i, want := range msgs {
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if got.Type != want.Type || got.Action != want.Action ||
			got.Stream != want.Stream || got.Line != want.Line ||
			got.Seq != want.Seq || got.Exit != want.Exit ||
			got.Canceled != want.Canceled || got.Reason != want.Reason ||
			got.Data != want.Data {
			t.Errorf("Next() #%d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("Next() after stream end error = %v, want io.EOF", err)
	}
}

func TestRequestCarriesVersion(t *testing.T) {
	m := NewRequest("update", nil, nil)
	if m.V != Version {
		t.Errorf("request version = %d, want %d", m.V, Version)
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		msg  Message
		want bool
	}{
		{NewResult(0, false), true},
		{NewRejected("nope"), true},
		{NewLog(StreamStdout, "x", 1), false},
		{NewRequest("install", nil, nil), false},
		{NewCancel(""), false},
	}
	for _, tt := range tests {
		if got := tt.msg.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.msg.Type, got, tt.want)
		}
	}
}

func TestEncoderRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Send(NewLog(StreamStdout, strings.Repeat("x", MaxLine), 1))
	if !errors.Is(err, ErrOversized) {
		t.Fatalf("Send() error = %v, want ErrOversized", err)
	}
	if buf.Len() != 0 {
		t.Error("oversized message reached the writer")
	}
}

func TestDecoderRejectsOversized(t *testing.T) {
	line := strings.Repeat("x", MaxLine+1) + "\n"
	dec := NewDecoder(strings.NewReader(line))
	if _, err := dec.Next(); !errors.Is(err, ErrOversized) {
		t.Fatalf("Next() error = %v, want ErrOversized", err)
	}
}

func TestDecoderRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "pacman -S vim\n"},
		{"missing type", `{"line":"hello"}` + "\n"},
		{"truncated", `{"type":"log","line":` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input))
			if _, err := dec.Next(); err == nil {
				t.Fatal("Next() succeeded, want error")
			}
		})
	}
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"type":"result","exit":0}` + "\n\n"
	dec := NewDecoder(strings.NewReader(input))
	m, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if m.Type != TypeResult {
		t.Errorf("Type = %q, want result", m.Type)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestEncoderConcurrentSends(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			enc.Send(NewLog(StreamStdout, strings.Repeat("line", 100), uint64(n)))
		}(i)
	}
	wg.Wait()

	dec := NewDecoder(&buf)
	count := 0
	for {
		_, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v after %d messages", err, count)
		}
		count++
	}
	if count != 50 {
		t.Errorf("decoded %d messages, want 50", count)
	}
}
