package rig

import "fmt"

// Command is one of the fixed single-byte instructions understood by the rig
// firmware. The wire byte is the ASCII digit of the command value.
type Command uint8

const (
	RedOn Command = iota
	RedOff
	GreenOn
	GreenOff
	BlueOn
	BlueOff
	UvOn
	UvOff
	ReadIntensity
	ReadTemperature

	numCommands
)

var commandNames = [numCommands]string{
	RedOn:           "RedOn",
	RedOff:          "RedOff",
	GreenOn:         "GreenOn",
	GreenOff:        "GreenOff",
	BlueOn:          "BlueOn",
	BlueOff:         "BlueOff",
	UvOn:            "UvOn",
	UvOff:           "UvOff",
	ReadIntensity:   "ReadIntensity",
	ReadTemperature: "ReadTemperature",
}

// Commands returns all commands in wire order.
func Commands() []Command {
	cmds := make([]Command, 0, numCommands)
	for c := Command(0); c < numCommands; c++ {
		cmds = append(cmds, c)
	}
	return cmds
}

// Valid reports whether c is one of the ten defined commands.
func (c Command) Valid() bool {
	return c < numCommands
}

// Byte returns the wire byte for c ('0'..'9').
func (c Command) Byte() byte {
	return '0' + byte(c)
}

// HasResponse reports whether the firmware answers c with a line.
func (c Command) HasResponse() bool {
	return c == ReadIntensity || c == ReadTemperature
}

func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Command(%d)", uint8(c))
	}
	return commandNames[c]
}

// ParseCommand maps a wire byte back to its command.
func ParseCommand(b byte) (Command, error) {
	if b < '0' || b > '9' {
		return 0, fmt.Errorf("unknown command byte %q", b)
	}
	return Command(b - '0'), nil
}
