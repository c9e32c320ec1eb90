package enums

import "testing"

func TestParseStockStatus(t *testing.T) {
	status, err := ParseStockStatus("low_stock")
	if err != nil || status != StockStatusLowStock {
		t.Fatalf("unexpected parse %q err=%v", status, err)
	}
	if _, err := ParseStockStatus("sold"); err == nil {
		t.Fatalf("expected unknown stock status to fail")
	}
	if StockStatus("").IsValid() {
		t.Fatalf("empty status should be invalid")
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("sent_whatsapp")
	if err != nil || status != OrderStatusSentWhatsApp {
		t.Fatalf("unexpected parse %q err=%v", status, err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected unknown order status to fail")
	}
}

func TestDisplayPriorityIsKnown(t *testing.T) {
	if !DisplayPriorityRecent.IsKnown() {
		t.Fatalf("recent should be known")
	}
	if DisplayPriority("homepage-banner").IsKnown() {
		t.Fatalf("custom priorities are kept but not known")
	}
}
