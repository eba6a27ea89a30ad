package message

import (
	"reflect"
	"testing"
)

func TestParseAnalyzeMessage(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    *AnalyzeQueueMessage
		wantErr bool
	}{
		{
			name:  "OK",
			input: `{"repository_id":1,"session_id":"abc","create_pr":true,"max_files":25}`,
			want:  &AnalyzeQueueMessage{RepositoryID: 1, SessionID: "abc", CreatePR: true, MaxFiles: 25},
		},
		{
			name:  "OK(minimal)",
			input: `{"repository_id":2}`,
			want:  &AnalyzeQueueMessage{RepositoryID: 2},
		},
		{
			name:    "NG(missing repository_id)",
			input:   `{"session_id":"abc"}`,
			wantErr: true,
		},
		{
			name:    "NG(negative max_files)",
			input:   `{"repository_id":1,"max_files":-1}`,
			wantErr: true,
		},
		{
			name:    "NG(invalid json)",
			input:   `{invalid`,
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseAnalyzeMessage(c.input)
			if (err != nil) != c.wantErr {
				t.Fatalf("unexpected error state: wantErr=%v, err=%+v", c.wantErr, err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Fatalf("unexpected result: want=%+v, got=%+v", c.want, got)
			}
		})
	}
}

func TestParseVerifyMessage(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    *VerifyQueueMessage
		wantErr bool
	}{
		{
			name:  "OK",
			input: `{"task_id":10,"create_pr":true}`,
			want:  &VerifyQueueMessage{TaskID: 10, CreatePR: true},
		},
		{
			name:    "NG(missing task_id)",
			input:   `{"create_pr":true}`,
			wantErr: true,
		},
		{
			name:    "NG(invalid json)",
			input:   `}`,
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseVerifyMessage(c.input)
			if (err != nil) != c.wantErr {
				t.Fatalf("unexpected error state: wantErr=%v, err=%+v", c.wantErr, err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Fatalf("unexpected result: want=%+v, got=%+v", c.want, got)
			}
		})
	}
}
