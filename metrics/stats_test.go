/* Copyright (c) 2018 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package metrics

import (
	"testing"
	"time"
)

func testStatisticsStartStop(t *testing.T, s Statistics) {
	s.Start()
	s.Stop()
}

func testStatisticsRegisterRemove(t *testing.T, s Statistics) {
	s.RegisterStream("testStatisticsRegisterRemove")
	s.RemoveStream("testStatisticsRegisterRemove")
}

func testStatisticsRegisterGetRemove(t *testing.T, s Statistics) {
	s.RegisterStream("testStatisticsRegisterGetRemove")
	s.GetStreamStatistics("testStatisticsRegisterGetRemove")
	s.RemoveStream("testStatisticsRegisterGetRemove")
	// unknown streams must not crash
	s.GetStreamStatistics("testStatisticsRegisterGetRemove")
}

func testStatisticsLimits(t *testing.T, s Statistics, max, full int64) {
	r := s.GetGlobalStatistics()
	if r.MaxConnections != max {
		t.Errorf("testStatisticsLimits: Max connection value (=%v) not matched (=%v)", r.MaxConnections, max)
	}
	if r.FullConnections != full {
		t.Errorf("testStatisticsLimits: Full connection value (=%v) not matched (=%v)", r.FullConnections, full)
	}
}

func testStatisticsStateChange(t *testing.T, s Statistics) {
	c := s.RegisterStream("testStatisticsStateChange")
	s.Start()
	c.ConnectionAdded()
	c.FrameSent(1000)
	c.FrameSent(500)
	c.FrameEncoded()
	c.CaptureFailed()
	c.ConnectionDenied()
	<-time.After(updateInterval + updateInterval/2)
	r := s.GetStreamStatistics("testStatisticsStateChange")
	g := s.GetGlobalStatistics()
	s.Stop()
	t.Logf("testStatisticsStateChange: %v", r)
	s.RemoveStream("testStatisticsStateChange")
	if r.Connections != 1 {
		t.Errorf("testStatisticsStateChange: Connected value (=%v) not matched (=%v)", r.Connections, 1)
	}
	if r.TotalFramesSent != 2 || r.TotalBytesSent != 1500 {
		t.Errorf("testStatisticsStateChange: Frame counters (=%v/%v) not matched (=2/1500)", r.TotalFramesSent, r.TotalBytesSent)
	}
	if r.TotalFramesEncoded != 1 || r.TotalCaptureFailures != 1 || r.TotalDenied != 1 {
		t.Errorf("testStatisticsStateChange: Error counters not matched: %v", r)
	}
	if g.TotalBytesSent != 1500 || g.Connections != 1 {
		t.Errorf("testStatisticsStateChange: Global statistics not aggregated: %v", g)
	}
}

func TestDummyStatistics(t *testing.T) {
	testStatisticsStartStop(t, &DummyStatistics{})
	testStatisticsRegisterRemove(t, &DummyStatistics{})
	testStatisticsRegisterGetRemove(t, &DummyStatistics{})
}

func TestRealStatistics(t *testing.T) {
	testStatisticsStartStop(t, NewStatistics(0, 0))
	testStatisticsRegisterRemove(t, NewStatistics(0, 0))
	testStatisticsRegisterGetRemove(t, NewStatistics(0, 0))
	testStatisticsLimits(t, NewStatistics(10, 20), 10, 20)
	testStatisticsStateChange(t, NewStatistics(0, 0))
}

func TestRealStatisticsDoubleStop(t *testing.T) {
	s := NewStatistics(0, 0)
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
