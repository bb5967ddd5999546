package camera

// Power is the body's power state.
type Power string

// Power states.
const (
	PowerOff     Power = "off"
	PowerBooting Power = "booting"
	PowerOn      Power = "on"
	PowerStandby Power = "standby"
)

// PowerEvent drives the power lifecycle.
type PowerEvent string

// Power events. BootComplete and IdleTimeout are raised by timers, the rest
// by the user.
const (
	PowerEventOn           PowerEvent = "on"
	PowerEventOff          PowerEvent = "off"
	PowerEventStandby      PowerEvent = "standby"
	PowerEventWake         PowerEvent = "wake"
	PowerEventBootComplete PowerEvent = "boot_complete"
	PowerEventIdleTimeout  PowerEvent = "idle_timeout"
)

// Valid reports whether e is a known power event.
func (e PowerEvent) Valid() bool {
	switch e {
	case PowerEventOn, PowerEventOff, PowerEventStandby, PowerEventWake,
		PowerEventBootComplete, PowerEventIdleTimeout:
		return true
	}
	return false
}

// NextPower returns the power state after event. Events that do not apply
// to the current state leave it unchanged.
//
//	off --on--> booting --boot_complete--> on
//	on --standby|idle_timeout--> standby --wake--> on
//	any --off--> off
func NextPower(p Power, e PowerEvent) Power {
	if e == PowerEventOff {
		return PowerOff
	}
	switch p {
	case PowerOff:
		if e == PowerEventOn {
			return PowerBooting
		}
	case PowerBooting:
		if e == PowerEventBootComplete {
			return PowerOn
		}
	case PowerOn:
		if e == PowerEventStandby || e == PowerEventIdleTimeout {
			return PowerStandby
		}
	case PowerStandby:
		if e == PowerEventWake || e == PowerEventOn {
			return PowerOn
		}
	}
	return p
}

// AcceptsInput reports whether dial and reducer commands are honoured in p.
// Standby accepts input because any interaction wakes the body.
func (p Power) AcceptsInput() bool {
	return p == PowerOn || p == PowerStandby
}
