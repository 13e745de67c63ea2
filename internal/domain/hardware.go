package domain

import "time"

type HardwareType string

const (
	HardwareGPU         HardwareType = "gpu"
	HardwareCPU         HardwareType = "cpu"
	HardwareMotherboard HardwareType = "motherboard"
	HardwareRAM         HardwareType = "ram"
	HardwareStorage     HardwareType = "storage"
	HardwarePSU         HardwareType = "psu"
	HardwareCase        HardwareType = "case"
	HardwareCooling     HardwareType = "cooling"
	HardwareMonitor     HardwareType = "monitor"
	HardwareKeyboard    HardwareType = "keyboard"
	HardwareMouse       HardwareType = "mouse"
	HardwareHeadset     HardwareType = "headset"
	HardwareLaptop      HardwareType = "laptop"
	HardwareConsole     HardwareType = "console"
	HardwareSmartphone  HardwareType = "smartphone"
	HardwareOther       HardwareType = "other"
)

// Hardware is a known product. Rows are created lazily when a hardware
// review or feed entry references a product that does not exist yet.
type Hardware struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	NameEN       string       `json:"name_en"`
	Slug         string       `json:"slug"`
	Type         HardwareType `json:"type"`
	Manufacturer string       `json:"manufacturer"`
	Model        string       `json:"model"`
	Description  string       `json:"description"`
	SpecsJSON    []byte       `json:"-"`
	Images       []string     `json:"images"`
	ReleaseDate  *time.Time   `json:"release_date,omitempty"`
	MSRP         *float64     `json:"msrp,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
