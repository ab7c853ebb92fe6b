package tiktok

import "testing"

func TestClassifyLinkShapes(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantKind  LinkKind
		wantRawID string
		wantURL   string
	}{
		{
			name:      "long link with scheme",
			text:      "check this https://www.tiktok.com/@placeholder/video/7068971038273423621 out",
			wantKind:  LinkLong,
			wantRawID: "7068971038273423621",
			wantURL:   "https://www.tiktok.com/@placeholder/video/7068971038273423621",
		},
		{
			name:      "long link without scheme",
			text:      "tiktok.com/@a/video/123456789012345",
			wantKind:  LinkLong,
			wantRawID: "123456789012345",
			wantURL:   "https://tiktok.com/@a/video/123456789012345",
		},
		{
			name:      "long link without www",
			text:      "https://tiktok.com/@some.handle/video/706897103827342362",
			wantKind:  LinkLong,
			wantRawID: "706897103827342362",
			wantURL:   "https://tiktok.com/@some.handle/video/706897103827342362",
		},
		{
			name:      "short link",
			text:      "lol https://vm.tiktok.com/PTPdh1wVay/",
			wantKind:  LinkShort,
			wantRawID: "PTPdh1wVay",
			wantURL:   "https://vm.tiktok.com/PTPdh1wVay",
		},
		{
			name:      "short link without scheme",
			text:      "vt.tiktok.com/ZSabcde",
			wantKind:  LinkShort,
			wantRawID: "ZSabcde",
			wantURL:   "https://vt.tiktok.com/ZSabcde",
		},
		{
			name:      "medium link",
			text:      "https://m.tiktok.com/v/7068971038273423621.html",
			wantKind:  LinkMedium,
			wantRawID: "7068971038273423621",
			wantURL:   "https://m.tiktok.com/v/7068971038273423621",
		},
		{
			name:      "medium link without scheme",
			text:      "m.tiktok.com/v/706897103827342362",
			wantKind:  LinkMedium,
			wantRawID: "706897103827342362",
			wantURL:   "https://m.tiktok.com/v/706897103827342362",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := Classify(tt.text)
			if link == nil {
				t.Fatalf("Classify(%q) = nil, want %v link", tt.text, tt.wantKind)
			}
			if link.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", link.Kind, tt.wantKind)
			}
			if link.RawID != tt.wantRawID {
				t.Errorf("RawID = %q, want %q", link.RawID, tt.wantRawID)
			}
			if link.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", link.URL, tt.wantURL)
			}
		})
	}
}

func TestClassifyNoMatch(t *testing.T) {
	texts := []string{
		"",
		"hello world",
		"https://example.com/@a/video/123456789012345",
		"tiktok.com/@toolonghandle/video/123", // id shorter than 15 digits
		"vm.tiktok.com/ab",                   // short code under 5 chars
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}
	for _, text := range texts {
		if link := Classify(text); link != nil {
			t.Errorf("Classify(%q) = %+v, want nil", text, link)
		}
	}
}

func TestClassifyPriority(t *testing.T) {
	// All three shapes present: long must win every time.
	text := "https://vm.tiktok.com/PTPdh1wVay/ m.tiktok.com/v/111111111111111 tiktok.com/@a/video/222222222222222"
	for i := 0; i < 10; i++ {
		link := Classify(text)
		if link == nil || link.Kind != LinkLong {
			t.Fatalf("iteration %d: got %+v, want long link", i, link)
		}
		if link.RawID != "222222222222222" {
			t.Fatalf("iteration %d: RawID = %q, want long link id", i, link.RawID)
		}
	}

	// Short and medium both present: short must win deterministically.
	text = "m.tiktok.com/v/111111111111111 and vm.tiktok.com/PTPdh1wVay"
	for i := 0; i < 10; i++ {
		link := Classify(text)
		if link == nil || link.Kind != LinkShort {
			t.Fatalf("iteration %d: got %+v, want short link", i, link)
		}
	}
}

func TestClassifyURLAlwaysAbsolute(t *testing.T) {
	texts := []string{
		"tiktok.com/@a/video/123456789012345",
		"https://www.tiktok.com/@a/video/123456789012345",
		"vm.tiktok.com/PTPdh1wVay",
		"m.tiktok.com/v/123456789012345",
	}
	for _, text := range texts {
		link := Classify(text)
		if link == nil {
			t.Fatalf("Classify(%q) = nil", text)
		}
		if len(link.URL) < 8 || link.URL[:8] != "https://" {
			t.Errorf("Classify(%q).URL = %q, want https:// prefix", text, link.URL)
		}
	}
}

func TestLinkKindString(t *testing.T) {
	tests := []struct {
		kind LinkKind
		want string
	}{
		{LinkLong, "long"},
		{LinkShort, "short"},
		{LinkMedium, "medium"},
		{LinkKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("LinkKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
