// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package attachment

import (
	"errors"
	"fmt"
	"strings"
)

const (
	transientContractIssuer = "S1G2081040G2081040G2081040G208105NK8PE5"
	transientContractName   = "__transient"
)

var ErrInvalidContractIdentifier = errors.New("invalid contract identifier")

// ContractIdentifier is the namespace an attachment instance is scoped to
type ContractIdentifier struct {
	Issuer string
	Name   string
}

// TransientContractIdentifier returns the identifier used for values that do
// not belong to a deployed contract
func TransientContractIdentifier() ContractIdentifier {
	return ContractIdentifier{
		Issuer: transientContractIssuer,
		Name:   transientContractName,
	}
}

// ParseContractIdentifier parses an identifier in issuer.name format
func ParseContractIdentifier(s string) (ContractIdentifier, error) {
	issuer, name, ok := strings.Cut(s, ".")
	if !ok || issuer == "" || name == "" || strings.Contains(name, ".") {
		return ContractIdentifier{}, fmt.Errorf(
			"%w: %q",
			ErrInvalidContractIdentifier,
			s,
		)
	}
	return ContractIdentifier{
		Issuer: issuer,
		Name:   name,
	}, nil
}

func (c ContractIdentifier) String() string {
	return c.Issuer + "." + c.Name
}

// Compare orders identifiers by issuer, then name
func (c ContractIdentifier) Compare(other ContractIdentifier) int {
	if ret := strings.Compare(c.Issuer, other.Issuer); ret != 0 {
		return ret
	}
	return strings.Compare(c.Name, other.Name)
}

func (c ContractIdentifier) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ContractIdentifier) UnmarshalText(data []byte) error {
	tmp, err := ParseContractIdentifier(string(data))
	if err != nil {
		return err
	}
	*c = tmp
	return nil
}
