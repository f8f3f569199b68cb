//go:build !linux

package utils

import (
	"errors"
)

var ErrNotSupported = errors.New("interface capture is only supported on linux")

type InterfaceReceiver struct{}

var _ Receiver = (*InterfaceReceiver)(nil)

func NewInterfaceReceiver(cfg *UDPReceiverConfig) (*InterfaceReceiver, error) {
	return nil, ErrNotSupported
}

func (r *InterfaceReceiver) Start(ifname string, decodeFunc DecoderFunc) error {
	return ErrNotSupported
}

func (r *InterfaceReceiver) Stop() error {
	return nil
}

func (r *InterfaceReceiver) Errors() <-chan error {
	return nil
}
