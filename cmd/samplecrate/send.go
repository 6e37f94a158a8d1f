package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"

	"github.com/gbraad-music/samplecrate-sub002/sysex"
)

var (
	sendTo   int
	sendPort string
)

var sendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send one remote-control command to another instance",
	Long: `Build a control frame and transmit it on a MIDI output port.

Commands:
  ping
  play | stop | pause
  position <seconds>          playhead, 0.1 s resolution
  bpm <tempo>
  pad <pad>
  mute|solo <channel> <0|1>
  volume|pan <channel> <0-127>
  load <filename>
  fx-get <program> <effect>
  fx-set <program> <effect> <0|1> [params...]
  fx-state <program>
  dl-start <slot> <program>
  dl-request <slot> <chunk>
  dl-abort <slot>

Effects: 0 distortion, 1 filter, 2 eq, 3 compressor, 4 delay.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().IntVar(&sendTo, "to", int(sysex.DeviceBroadcast), "target device id (default broadcast)")
	sendCmd.Flags().StringVar(&sendPort, "port", "", "MIDI output port name")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendTo < 0 || sendTo > 0x7F {
		return fmt.Errorf("device id %d out of range", sendTo)
	}
	frame, err := buildFrame(byte(sendTo), args)
	if err != nil {
		return err
	}

	defer midi.CloseDriver()
	out, err := midi.FindOutPort(sendPort)
	if err != nil {
		return fmt.Errorf("output port %q: %w", sendPort, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return err
	}
	if err := send(midi.Message(frame)); err != nil {
		return err
	}
	fmt.Printf("sent % X to %s\n", frame, out.String())
	return nil
}

func buildFrame(device byte, args []string) ([]byte, error) {
	num := func(i int) (int, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("%s: missing argument", args[0])
		}
		return strconv.Atoi(args[i])
	}

	switch args[0] {
	case "ping":
		return sysex.Ping(device)
	case "play":
		return sysex.Play(device)
	case "stop":
		return sysex.Stop(device)
	case "pause":
		return sysex.Pause(device)

	case "position":
		if len(args) < 2 {
			return nil, fmt.Errorf("position: missing seconds")
		}
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, err
		}
		return sysex.SetPosition(device, uint16(secs*10))

	case "bpm":
		v, err := num(1)
		if err != nil {
			return nil, err
		}
		return sysex.SetBPM(device, uint16(v))

	case "pad":
		v, err := num(1)
		if err != nil {
			return nil, err
		}
		return sysex.TriggerPad(device, byte(v))

	case "mute", "solo":
		ch, err := num(1)
		if err != nil {
			return nil, err
		}
		on, err := num(2)
		if err != nil {
			return nil, err
		}
		if args[0] == "mute" {
			return sysex.ChannelMute(device, byte(ch), on != 0)
		}
		return sysex.ChannelSolo(device, byte(ch), on != 0)

	case "volume", "pan":
		ch, err := num(1)
		if err != nil {
			return nil, err
		}
		v, err := num(2)
		if err != nil {
			return nil, err
		}
		if args[0] == "volume" {
			return sysex.ChannelVolume(device, byte(ch), byte(v))
		}
		return sysex.ChannelPan(device, byte(ch), byte(v))

	case "load":
		if len(args) < 2 {
			return nil, fmt.Errorf("load: missing filename")
		}
		return sysex.FileLoad(device, args[1])

	case "fx-get":
		prog, err := num(1)
		if err != nil {
			return nil, err
		}
		fx, err := num(2)
		if err != nil {
			return nil, err
		}
		return sysex.FxGet(device, byte(prog), sysex.Effect(fx))

	case "fx-set":
		prog, err := num(1)
		if err != nil {
			return nil, err
		}
		fx, err := num(2)
		if err != nil {
			return nil, err
		}
		on, err := num(3)
		if err != nil {
			return nil, err
		}
		var params []byte
		for i := 4; i < len(args); i++ {
			v, err := num(i)
			if err != nil {
				return nil, err
			}
			params = append(params, byte(v))
		}
		return sysex.FxSet(device, byte(prog), sysex.Effect(fx), on != 0, params)

	case "fx-state":
		prog, err := num(1)
		if err != nil {
			return nil, err
		}
		return sysex.FxGetAllState(device, byte(prog))

	case "dl-start":
		slot, err := num(1)
		if err != nil {
			return nil, err
		}
		prog, err := num(2)
		if err != nil {
			return nil, err
		}
		return sysex.DownloadStart(device, slot, byte(prog))

	case "dl-request":
		slot, err := num(1)
		if err != nil {
			return nil, err
		}
		chunk, err := num(2)
		if err != nil {
			return nil, err
		}
		return sysex.DownloadChunkRequest(device, slot, chunk)

	case "dl-abort":
		slot, err := num(1)
		if err != nil {
			return nil, err
		}
		return sysex.DownloadAbort(device, slot)
	}
	return nil, fmt.Errorf("unknown command %q", args[0])
}
