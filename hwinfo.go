package myq

import "strings"

// HwInfo describes the hardware behind a serial number.
type HwInfo struct {
	Brand   string
	Product string
}

// hwDecode maps the 3rd and 4th characters of a serial number to the
// hardware that produced it. The table is assembled from observed serial
// numbers; unmapped codes decode as unknown.
var hwDecode = map[string]HwInfo{
	"00": {Brand: "Chamberlain", Product: "Ethernet Gateway"},
	"01": {Brand: "Liftmaster", Product: "Ethernet Gateway"},
	"02": {Brand: "Craftsman", Product: "Ethernet Gateway"},
	"03": {Brand: "Chamberlain", Product: "WiFi Hub"},
	"04": {Brand: "Liftmaster", Product: "WiFi Hub"},
	"05": {Brand: "Craftsman", Product: "WiFi Hub"},
	"08": {Brand: "Liftmaster", Product: "WiFi GDO DC w/Battery Backup"},
	"09": {Brand: "Chamberlain", Product: "WiFi GDO DC w/Battery Backup"},
	"0A": {Brand: "Chamberlain", Product: "WiFi GDO AC"},
	"0B": {Brand: "Liftmaster", Product: "WiFi GDO AC"},
	"0C": {Brand: "Craftsman", Product: "WiFi GDO AC"},
	"10": {Brand: "Chamberlain", Product: "WiFi GDO AC 3/4 HP"},
	"11": {Brand: "Liftmaster", Product: "WiFi GDO AC 3/4 HP"},
	"12": {Brand: "Craftsman", Product: "WiFi GDO AC 3/4 HP"},
	"20": {Brand: "Chamberlain", Product: "myQ Home Bridge"},
	"21": {Brand: "Liftmaster", Product: "myQ Home Bridge"},
	"23": {Brand: "Chamberlain", Product: "Smart Garage Hub"},
	"24": {Brand: "Liftmaster", Product: "Smart Garage Hub"},
	"27": {Brand: "Liftmaster", Product: "WiFi Wall Mount Opener"},
	"28": {Brand: "Liftmaster", Product: "WiFi Wall Mount Operator"},
	"80": {Brand: "Liftmaster EU", Product: "Ethernet Gateway"},
	"81": {Brand: "Chamberlain EU", Product: "Ethernet Gateway"},
}

// GetHwInfo decodes the brand and product encoded in a device serial
// number. Serial numbers shorter than 4 characters or with an unmapped
// code return ok=false.
func GetHwInfo(serial string) (HwInfo, bool) {
	if len(serial) < 4 {
		return HwInfo{}, false
	}
	info, ok := hwDecode[strings.ToUpper(serial[2:4])]
	return info, ok
}
