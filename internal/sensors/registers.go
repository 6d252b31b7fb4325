// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "fmt"

// MPU-6050 register addresses used by this project.
const (
	RegSmplrtDiv   byte = 0x19
	RegConfig      byte = 0x1A
	RegGyroConfig  byte = 0x1B
	RegAccelConfig byte = 0x1C
	RegIntEnable   byte = 0x38
	RegIntStatus   byte = 0x3A
	RegAccelXoutH  byte = 0x3B // start of the 14-byte accel/temp/gyro block
	RegTempOutH    byte = 0x41
	RegGyroXoutH   byte = 0x43
	RegPwrMgmt1    byte = 0x6B
	RegPwrMgmt2    byte = 0x6C
	RegWhoAmI      byte = 0x75
)

// DefaultAddress is the MPU-6050 I2C address with AD0 tied low.
const DefaultAddress uint16 = 0x68

// AlternateAddress is used when AD0 is tied high.
const AlternateAddress uint16 = 0x69

// fullScaleMask clears the FS_SEL bits (4:3) of ACCEL_CONFIG / GYRO_CONFIG.
const fullScaleMask byte = 0xE7

// sleepBit is bit 6 of PWR_MGMT_1.
const sleepBit byte = 1 << 6

// BitField describes a named bit range within a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is register map metadata shown by the register debug tool.
type RegisterInfo struct {
	Address     byte       `json:"-"`
	Hex         string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

func reg(addr byte, name, desc, access, def string, fields ...BitField) RegisterInfo {
	return RegisterInfo{
		Address:     addr,
		Hex:         fmt.Sprintf("0x%02X", addr),
		Name:        name,
		Description: desc,
		Access:      access,
		Default:     def,
		BitFields:   fields,
	}
}

// RegisterMap returns metadata for the MPU-6050 registers the tools expose.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Configuration
		reg(RegSmplrtDiv, "SMPLRT_DIV", "Sample Rate Divider", "RW", "0x00",
			BitField{Bits: "7:0", Name: "SMPLRT_DIV", Description: "Sample Rate = Gyro_Output_Rate / (1 + SMPLRT_DIV)", Values: "0-255"}),
		reg(RegConfig, "CONFIG", "Configuration (DLPF)", "RW", "0x00",
			BitField{Bits: "5:3", Name: "EXT_SYNC_SET", Description: "External FSYNC pin sampling", Values: "0=Disabled"},
			BitField{Bits: "2:0", Name: "DLPF_CFG", Description: "Digital Low Pass Filter", Values: "0=260Hz, 1=184Hz, 2=94Hz, 3=44Hz, 4=21Hz, 5=10Hz, 6=5Hz"}),
		reg(RegGyroConfig, "GYRO_CONFIG", "Gyroscope Configuration", "RW", "0x00",
			BitField{Bits: "7:5", Name: "XG_ST/YG_ST/ZG_ST", Description: "Gyro self-test", Values: "0=Disabled, 1=Enabled"},
			BitField{Bits: "4:3", Name: "FS_SEL", Description: "Gyro Full Scale Range", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"}),
		reg(RegAccelConfig, "ACCEL_CONFIG", "Accelerometer Configuration", "RW", "0x00",
			BitField{Bits: "7:5", Name: "XA_ST/YA_ST/ZA_ST", Description: "Accel self-test", Values: "0=Disabled, 1=Enabled"},
			BitField{Bits: "4:3", Name: "AFS_SEL", Description: "Accel Full Scale Range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"}),

		// Interrupts
		reg(RegIntEnable, "INT_ENABLE", "Interrupt Enable", "RW", "0x00",
			BitField{Bits: "0", Name: "DATA_RDY_EN", Description: "Data ready interrupt", Values: "0=Disabled, 1=Enabled"}),
		reg(RegIntStatus, "INT_STATUS", "Interrupt Status", "R", "0x00",
			BitField{Bits: "0", Name: "DATA_RDY_INT", Description: "Data ready interrupt status"}),

		// Sensor data (read-only)
		reg(0x3B, "ACCEL_XOUT_H", "Accelerometer X-Axis High Byte", "R", ""),
		reg(0x3C, "ACCEL_XOUT_L", "Accelerometer X-Axis Low Byte", "R", ""),
		reg(0x3D, "ACCEL_YOUT_H", "Accelerometer Y-Axis High Byte", "R", ""),
		reg(0x3E, "ACCEL_YOUT_L", "Accelerometer Y-Axis Low Byte", "R", ""),
		reg(0x3F, "ACCEL_ZOUT_H", "Accelerometer Z-Axis High Byte", "R", ""),
		reg(0x40, "ACCEL_ZOUT_L", "Accelerometer Z-Axis Low Byte", "R", ""),
		reg(0x41, "TEMP_OUT_H", "Temperature High Byte", "R", ""),
		reg(0x42, "TEMP_OUT_L", "Temperature Low Byte", "R", ""),
		reg(0x43, "GYRO_XOUT_H", "Gyroscope X-Axis High Byte", "R", ""),
		reg(0x44, "GYRO_XOUT_L", "Gyroscope X-Axis Low Byte", "R", ""),
		reg(0x45, "GYRO_YOUT_H", "Gyroscope Y-Axis High Byte", "R", ""),
		reg(0x46, "GYRO_YOUT_L", "Gyroscope Y-Axis Low Byte", "R", ""),
		reg(0x47, "GYRO_ZOUT_H", "Gyroscope Z-Axis High Byte", "R", ""),
		reg(0x48, "GYRO_ZOUT_L", "Gyroscope Z-Axis Low Byte", "R", ""),

		// Power management
		reg(RegPwrMgmt1, "PWR_MGMT_1", "Power Management 1", "RW", "0x40",
			BitField{Bits: "7", Name: "DEVICE_RESET", Description: "Device reset", Values: "1=Reset device"},
			BitField{Bits: "6", Name: "SLEEP", Description: "Sleep mode", Values: "0=Disabled, 1=Sleep"},
			BitField{Bits: "5", Name: "CYCLE", Description: "Cycle mode", Values: "0=Disabled, 1=Cycle"},
			BitField{Bits: "3", Name: "TEMP_DIS", Description: "Temperature sensor", Values: "0=Enabled, 1=Disabled"},
			BitField{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=Internal 8MHz, 1=PLL X gyro"}),
		reg(RegPwrMgmt2, "PWR_MGMT_2", "Power Management 2", "RW", "0x00",
			BitField{Bits: "5:3", Name: "STBY_XA/YA/ZA", Description: "Accelerometer standby", Values: "0=Enabled, 1=Standby"},
			BitField{Bits: "2:0", Name: "STBY_XG/YG/ZG", Description: "Gyro standby", Values: "0=Enabled, 1=Standby"}),
		reg(RegWhoAmI, "WHO_AM_I", "Device ID (should be 0x68)", "R", "0x68"),
	}
}
