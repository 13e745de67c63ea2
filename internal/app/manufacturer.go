package app

import (
	"regexp"
	"sort"
	"strings"

	"review_studio/internal/domain"
)

// knownManufacturers is matched as a case-insensitive prefix of a product title.
var knownManufacturers = []string{
	"NVIDIA", "AMD", "Intel", "ASUS", "ROG", "MSI", "Gigabyte", "AORUS", "ASRock", "EVGA", "Zotac", "Palit",
	"PNY", "Sapphire", "PowerColor", "XFX", "Corsair", "Logitech", "Razer", "SteelSeries", "HyperX",
	"Roccat", "Turtle Beach", "Cooler Master", "be quiet!", "Noctua", "NZXT", "Fractal Design", "Lian Li",
	"Thermaltake", "Seasonic", "Arctic", "Deepcool", "Thermalright", "Sharkoon", "Samsung",
	"Western Digital", "WD", "Seagate", "Crucial", "Kingston", "G.Skill", "Teamgroup", "LG", "Dell",
	"Alienware", "Acer", "BenQ", "AOC", "Philips", "Lenovo", "HP", "Apple", "Sony", "Microsoft",
	"Nintendo", "Valve", "Google", "Xiaomi", "OnePlus", "Huawei", "Elgato", "Sennheiser",
	"Beyerdynamic", "Glorious", "Ducky", "Keychron", "Wooting", "Cherry", "Teufel", "Nothing",
}

var manufacturerAliases = map[string]string{"ROG": "ASUS", "AORUS": "Gigabyte", "WD": "Western Digital"}

func init() {
	// longest first so "Western Digital" wins over "WD"-like prefixes
	sort.SliceStable(knownManufacturers, func(i, j int) bool {
		return len(knownManufacturers[i]) > len(knownManufacturers[j])
	})
}

type lineRule struct {
	re           *regexp.Regexp
	manufacturer string
}

var productLineRules = []lineRule{
	{regexp.MustCompile(`(?i)\b(RTX|GTX|GeForce|Quadro|Shield)\b`), "NVIDIA"},
	{regexp.MustCompile(`(?i)\b(Ryzen|Radeon|Threadripper|EPYC|RX\s?\d{3,4})\b`), "AMD"},
	{regexp.MustCompile(`(?i)\b(Core\s+(i[3579]|Ultra)|Xeon|Arc\s+[AB]\d{3})\b`), "Intel"},
	{regexp.MustCompile(`(?i)\b(iPhone|iPad|MacBook|AirPods|iMac|Mac\s?mini|Apple\s+Watch)\b`), "Apple"},
	{regexp.MustCompile(`(?i)\b(PlayStation|PS5|PS4|DualSense|PSVR2?)\b`), "Sony"},
	{regexp.MustCompile(`(?i)\b(Xbox|Surface)\b`), "Microsoft"},
	{regexp.MustCompile(`(?i)\b(Nintendo|Switch\s?2?|Joy-Con)\b`), "Nintendo"},
	{regexp.MustCompile(`(?i)\bGalaxy\b`), "Samsung"},
	{regexp.MustCompile(`(?i)\bSteam\s?Deck\b`), "Valve"},
	{regexp.MustCompile(`(?i)\bPixel\b`), "Google"},
}

// ParseManufacturer splits a free-text product title into manufacturer and
// model. A known manufacturer prefix is removed from the model; a
// product-line match keeps the full title as model. Unknown titles return
// an empty manufacturer.
func ParseManufacturer(title string) (manufacturer, model string) {
	t := strings.Join(strings.Fields(title), " ")
	low := strings.ToLower(t)
	for _, m := range knownManufacturers {
		ml := strings.ToLower(m)
		if !strings.HasPrefix(low, ml) {
			continue
		}
		rest := t[len(m):]
		if rest != "" && !strings.HasPrefix(rest, " ") {
			continue // "LGA1700" is not "LG"
		}
		name := m
		if alias, ok := manufacturerAliases[m]; ok {
			name = alias
		}
		return name, strings.TrimSpace(rest)
	}
	for _, r := range productLineRules {
		if r.re.MatchString(t) {
			return r.manufacturer, t
		}
	}
	return "", t
}

var hardwareTypeRules = []struct {
	re  *regexp.Regexp
	typ domain.HardwareType
}{
	{regexp.MustCompile(`(?i)\b(RTX|GTX|Radeon|RX\s?\d{3,4}|Arc\s+[AB]\d{3}|Grafikkarte|GPU)\b`), domain.HardwareGPU},
	{regexp.MustCompile(`(?i)\b(Ryzen|Core\s+(i[3579]|Ultra)|Threadripper|Xeon|Prozessor|CPU)\b`), domain.HardwareCPU},
	{regexp.MustCompile(`(?i)\b(PlayStation|PS5|Xbox|Switch|Steam\s?Deck|Konsole)\b`), domain.HardwareConsole},
	{regexp.MustCompile(`(?i)\b(Laptop|Notebook|MacBook)\b`), domain.HardwareLaptop},
	{regexp.MustCompile(`(?i)\b(iPhone|Galaxy\s+S\d+|Pixel\s+\d+|Smartphone)\b`), domain.HardwareSmartphone},
	{regexp.MustCompile(`(?i)\b(Mainboard|Motherboard|[ABHXZ]\d{3}[EM]?|B\d{3}M?)\b`), domain.HardwareMotherboard},
	{regexp.MustCompile(`(?i)\b(DDR[45]|RAM|Arbeitsspeicher)\b`), domain.HardwareRAM},
	{regexp.MustCompile(`(?i)\b(SSD|NVMe|HDD|Festplatte)\b`), domain.HardwareStorage},
	{regexp.MustCompile(`(?i)\b(Netzteil|PSU|\d{3,4}\s?W)\b`), domain.HardwarePSU},
	{regexp.MustCompile(`(?i)\b(Gehäuse|Case|Tower)\b`), domain.HardwareCase},
	{regexp.MustCompile(`(?i)\b(Kühler|Cooler|AIO|Lüfter|Fan)\b`), domain.HardwareCooling},
	{regexp.MustCompile(`(?i)\b(Monitor|Display|OLED|Hz)\b`), domain.HardwareMonitor},
	{regexp.MustCompile(`(?i)\b(Tastatur|Keyboard)\b`), domain.HardwareKeyboard},
	{regexp.MustCompile(`(?i)\b(Maus|Mouse)\b`), domain.HardwareMouse},
	{regexp.MustCompile(`(?i)\b(Headset|Kopfhörer|Headphones|Earbuds)\b`), domain.HardwareHeadset},
}

// GuessHardwareType classifies a product title by keywords, first match wins.
func GuessHardwareType(title string) domain.HardwareType {
	for _, r := range hardwareTypeRules {
		if r.re.MatchString(title) {
			return r.typ
		}
	}
	return domain.HardwareOther
}
