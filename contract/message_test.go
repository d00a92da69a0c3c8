package contract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeLoggerEntryWireShape(t *testing.T) {
	tests := []struct {
		name  string
		entry LoggerEntry
		want  string
	}{
		{
			name:  "without version",
			entry: LoggerEntry{Level: "info", FormatMessage: "hello"},
			want:  `{"Level":"info","FormatMessage":"hello"}`,
		},
		{
			name:  "with version",
			entry: LoggerEntry{Level: "info", FormatMessage: "hello", Version: Version2014_02},
			want:  `{"Level":"info","FormatMessage":"hello","Version":"_2014_02"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.entry)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	messages := []Message{
		LoggerEntry{Level: "WARN", FormatMessage: "disk low", Version: Version2014_02},
		Selection{
			Selection:    []ObjectRef{{Data: EncodeEmbeddedJSON(`{"ObjId":"u1"}`), Type: "UID"}},
			SingleSelect: true,
			Version:      Version2019_05,
		},
		OpenLocation{
			Location:      "com.siemens.splm.clientfx.tcui.xrt.showObject",
			OpenComponent: []BasicObjectRef{{ObjId: "a"}, {ObjId: "b", ObjType: "Item"}},
		},
		QueryMessage{
			Queries: []NativeQuery{{
				QueryID:   "q",
				MessageID: "MsgId_1",
				DataObjects: []NativeDataObject{{
					DataFields: []KeyValue{{Key: "string:name", Value: "x"}},
				}},
			}},
			Version: Version2015_10,
		},
		StartupNotification{Status: "Started"},
	}

	for _, m := range messages {
		t.Run(m.Kind().String(), func(t *testing.T) {
			data, err := Encode(m)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := DecodeKind(m.Kind(), data)
			if err != nil {
				t.Fatalf("DecodeKind: %v", err)
			}
			if diff := cmp.Diff(m, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	got, err := Decode[LoggerEntry]("{not json")
	if err == nil {
		t.Error("expected decode error")
	}
	if got != (LoggerEntry{}) {
		t.Errorf("got %+v, want zero value", got)
	}

	partial, err := Decode[OpenLocation](`{"location":"home","OpenComponent":"nope"}`)
	if err == nil {
		t.Error("expected type error")
	}
	if partial.Location != "home" {
		t.Errorf("Location = %q, want partial hydrate", partial.Location)
	}

	empty, err := Decode[Selection]("")
	if err != nil {
		t.Errorf("empty input: %v", err)
	}
	if empty.Selection != nil {
		t.Errorf("Selection = %v, want nil", empty.Selection)
	}
}

func TestDecodeKindUnknown(t *testing.T) {
	if _, err := DecodeKind(Kind(99), "{}"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
