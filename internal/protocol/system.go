package protocol

// Application and system message types.
const (
	NotifyApplicationAlive = "Application.NotifyAlive"
	ApplicationRestart     = "Application.Restart"
	SystemReboot           = "System.Reboot"
	SystemGetDeviceUID     = "System.GetDeviceUid"
	SystemGetModel         = "System.GetModel"
	SystemGetSerialNumber  = "System.GetSerialNumber"
	NetworkGetInfo         = "Network.GetInfo"
	ScreenTurnOff          = "Screen.TurnOff"
	ScreenTurnOn           = "Screen.TurnOn"
	AudioGetVolume         = "Audio.GetVolume"
	AudioSetVolume         = "Audio.SetVolume"
	OverlayHide            = "Overlay.Hide"
)

// CECKeyPress is pushed to clients for every debounced remote key.
const CECKeyPress = "CEC.KeyPress"

type SetVolume struct {
	TypedMessage
	Volume int `json:"volume" cbor:"volume"`
}

type HideOverlay struct {
	TypedMessage
	ID string `json:"id" cbor:"id"`
}

type NetworkInfo struct {
	Interfaces []NetworkInterface `json:"interfaces" cbor:"interfaces"`
}

type NetworkInterface struct {
	Name       string   `json:"name" cbor:"name"`
	MACAddress string   `json:"macAddress,omitempty" cbor:"macAddress,omitempty"`
	Addresses  []string `json:"addresses,omitempty" cbor:"addresses,omitempty"`
}

type KeyPress struct {
	Key  int    `json:"key" cbor:"key"`
	Name string `json:"name" cbor:"name"`
}

type DeviceUIDResult struct {
	DeviceUID string `json:"deviceUid" cbor:"deviceUid"`
}

type ModelResult struct {
	Model string `json:"model" cbor:"model"`
}

type SerialNumberResult struct {
	SerialNumber string `json:"serialNumber" cbor:"serialNumber"`
}

type VolumeResult struct {
	Volume int `json:"volume" cbor:"volume"`
}
