package session

import "testing"

func TestPagerSplitsAndSignalsMore(t *testing.T) {
	body := "1\n2\n3\n4\n5"
	p := NewPager(body, 2)

	page, more := p.Next()
	if len(page) != 2 || page[0] != "1" || page[1] != "2" || !more {
		t.Fatalf("got %v more=%v", page, more)
	}
	page, more = p.Next()
	if len(page) != 2 || page[0] != "3" || page[1] != "4" || !more {
		t.Fatalf("got %v more=%v", page, more)
	}
	page, more = p.Next()
	if len(page) != 1 || page[0] != "5" || more {
		t.Fatalf("got %v more=%v", page, more)
	}
	if !p.Done() {
		t.Fatalf("expected Done() after the last page")
	}
}

func TestPagerShortBodyNeedsNoMore(t *testing.T) {
	p := NewPager("only one line", 23)
	page, more := p.Next()
	if more || len(page) != 1 {
		t.Fatalf("got %v more=%v", page, more)
	}
}
