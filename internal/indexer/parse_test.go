package indexer

import "testing"

func TestParseAddressesDedupes(t *testing.T) {
	got, err := ParseAddresses([]string{
		"0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7",
		" ",
		"0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one address, got %d", len(got))
	}
	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestParseTopic0(t *testing.T) {
	topic := "0x8b3e96f2b889fa771c53c981b40daf005f63f637f1869f707052d15a3dd97140"
	got, err := ParseTopic0([]string{topic, topic})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Hex() != topic {
		t.Fatalf("unexpected topics: %v", got)
	}
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected length error")
	}
}
