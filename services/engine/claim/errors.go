// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package claim

import "errors"

// ErrInvalidInput marks extraction failures caused by malformed raw
// claims: empty text, a claim type outside the enum, or an explicit
// claim with no citation hint. Callers test with errors.Is.
var ErrInvalidInput = errors.New("invalid input")
