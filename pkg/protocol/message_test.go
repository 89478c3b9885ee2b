package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "motor message",
			msgType: TypeMotor,
			data:    MotorCommand{Left: 400, Right: -400},
		},
		{
			name:    "distance message",
			msgType: TypeDistance,
			data:    DistanceData{MM: 229},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeRow,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestAudioMessage(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	msg, err := NewAudioMessage(pcm, 16000, 4, 7)
	if err != nil {
		t.Fatalf("NewAudioMessage() error = %v", err)
	}

	data, _ := msg.Bytes()
	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeAudio {
		t.Fatalf("Type = %s, want audio", parsed.Type)
	}

	audio, err := parsed.GetAudioData()
	if err != nil {
		t.Fatalf("GetAudioData() error = %v", err)
	}
	if audio.SampleRate != 16000 || audio.Channels != 4 || audio.Seq != 7 {
		t.Errorf("audio = %+v", audio)
	}
	decoded, err := audio.DecodeAudioData()
	if err != nil {
		t.Fatalf("DecodeAudioData() error = %v", err)
	}
	if string(decoded) != string(pcm) {
		t.Errorf("decoded = %v, want %v", decoded, pcm)
	}
}

func TestAudioMessage_RejectsOtherFormats(t *testing.T) {
	msg, _ := NewMessage(TypeAudio, AudioData{Format: "opus", Data: ""})
	if _, err := msg.GetAudioData(); err == nil {
		t.Error("expected an error for opus audio")
	}
}

func TestRowMessage(t *testing.T) {
	pixels := []byte{0xf8, 0x00, 0x07, 0xe0}
	msg, err := NewRowMessage(12, "red", FormatRGB565, 2, pixels)
	if err != nil {
		t.Fatalf("NewRowMessage() error = %v", err)
	}

	row, err := msg.GetRowData()
	if err != nil {
		t.Fatalf("GetRowData() error = %v", err)
	}
	if row.ID != 12 || row.Channel != "red" || row.Width != 2 || row.Error != "" {
		t.Errorf("row = %+v", row)
	}
	decoded, _ := row.DecodeRowData()
	if string(decoded) != string(pixels) {
		t.Errorf("decoded = %v", decoded)
	}

	msg, _ = NewRowErrorMessage(13, "blue", errors.New("sensor busy"))
	row, _ = msg.GetRowData()
	if row.ID != 13 || row.Error != "sensor busy" {
		t.Errorf("error row = %+v", row)
	}
}

func TestDistanceMessage(t *testing.T) {
	msg, _ := NewDistanceMessage(181.5, nil)
	d, err := msg.GetDistanceData()
	if err != nil {
		t.Fatalf("GetDistanceData() error = %v", err)
	}
	if d.MM != 181.5 || d.Error != "" {
		t.Errorf("distance = %+v", d)
	}

	msg, _ = NewDistanceMessage(0, errors.New("out of range"))
	d, _ = msg.GetDistanceData()
	if d.Error != "out of range" {
		t.Errorf("distance error = %q", d.Error)
	}
}

func TestCommandMessages(t *testing.T) {
	msg, _ := NewMotorMessage(-1100, 1100)
	motor, err := msg.GetMotorCommand()
	if err != nil || motor.Left != -1100 || motor.Right != 1100 {
		t.Errorf("motor = %+v, err = %v", motor, err)
	}

	msg, _ = NewIndicatorMessage(255, 0, 255)
	ind, err := msg.GetIndicatorCommand()
	if err != nil || ind.R != 255 || ind.G != 0 || ind.B != 255 {
		t.Errorf("indicator = %+v, err = %v", ind, err)
	}

	msg, _ = NewCaptureMessage(99, "green")
	req, err := msg.GetCaptureRequest()
	if err != nil || req.ID != 99 || req.Channel != "green" {
		t.Errorf("capture = %+v, err = %v", req, err)
	}

	msg, _ = NewHelloMessage("bench", 16000, 4, 640)
	hello, err := msg.GetHelloData()
	if err != nil || hello.Name != "bench" || hello.RowWidth != 640 {
		t.Errorf("hello = %+v, err = %v", hello, err)
	}
}

func TestPingPongMessage(t *testing.T) {
	ping, _ := NewPingMessage("abc")
	pd, err := ping.GetPingData()
	if err != nil || pd.ID != "abc" {
		t.Errorf("ping = %+v, err = %v", pd, err)
	}

	pong, _ := NewPongMessage("abc", 1000, 1025)
	pg, err := pong.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}
	if pg.LatencyMs != 25 {
		t.Errorf("LatencyMs = %d, want 25", pg.LatencyMs)
	}
}

func TestParseInvalidMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "invalid json",
			input:   "not json",
			wantErr: true,
		},
		{
			name:    "missing type",
			input:   "{}",
			wantErr: true,
		},
		{
			name:    "valid message",
			input:   `{"type":"ping","ts":1234567890}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageJSON(t *testing.T) {
	msg, _ := NewMotorMessage(400, 380)
	bytes, _ := msg.Bytes()

	var parsed map[string]interface{}
	if err := json.Unmarshal(bytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal as map: %v", err)
	}

	if parsed["type"] != "motor" {
		t.Errorf("type = %v, want motor", parsed["type"])
	}
	if _, ok := parsed["ts"]; !ok {
		t.Error("ts field should be present")
	}
	data, ok := parsed["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data field should be an object")
	}
	if data["left"] != float64(400) || data["right"] != float64(380) {
		t.Errorf("data = %v", data)
	}
}

func BenchmarkNewAudioMessage(b *testing.B) {
	pcm := make([]byte, 160*4*2) // 10 ms, 4 channels

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewAudioMessage(pcm, 16000, 4, uint64(i))
	}
}

func BenchmarkParseMessage(b *testing.B) {
	msg, _ := NewAudioMessage(make([]byte, 160*4*2), 16000, 4, 1)
	bytes, _ := msg.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseMessage(bytes)
	}
}
